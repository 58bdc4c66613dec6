package auth_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/flashq/flashq/internal/auth"
	"github.com/flashq/flashq/internal/flashq"
	"github.com/flashq/flashq/internal/record"
)

func newAuthorizer(t *testing.T) *auth.Authorizer {
	t.Helper()
	a, err := auth.New("testdata/model.conf", "testdata/policy.csv")
	require.NoError(t, err)
	return a
}

func TestAuthorizeAllowsPolicyMatch(t *testing.T) {
	a := newAuthorizer(t)
	require.NoError(t, a.Authorize("root", auth.ObjectWildcard, auth.ProduceAction))
}

func TestAuthorizeDeniesUnlistedSubject(t *testing.T) {
	a := newAuthorizer(t)
	err := a.Authorize("stranger", auth.ObjectWildcard, auth.ProduceAction)
	require.Error(t, err)
	var denied auth.ErrPermissionDenied
	require.ErrorAs(t, err, &denied)
}

func TestAuthorizeDeniesDisallowedAction(t *testing.T) {
	a := newAuthorizer(t)
	require.Error(t, a.Authorize("nobody", auth.ObjectWildcard, auth.ProduceAction))
	require.NoError(t, a.Authorize("nobody", auth.ObjectWildcard, auth.ConsumeAction))
}

func TestPartitionLogDecoratorEnforcesProduceAndConsume(t *testing.T) {
	backend, err := flashq.Open(flashq.Config{Kind: flashq.KindMemory}, zerolog.Nop())
	require.NoError(t, err)
	defer backend.Close()

	inner, err := backend.CreateOrOpenPartition("orders", 0)
	require.NoError(t, err)

	a := newAuthorizer(t)
	asRoot := auth.NewPartitionLog(inner, a, "root", auth.ObjectWildcard)
	asNobody := auth.NewPartitionLog(inner, a, "nobody", auth.ObjectWildcard)

	_, err = asNobody.Append(record.Record{Value: []byte("a")})
	require.Error(t, err)

	off, err := asRoot.Append(record.Record{Value: []byte("a")})
	require.NoError(t, err)
	require.EqualValues(t, 0, off)

	got, err := asNobody.ReadFromOffset(0, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
}
