// Package auth wraps a casbin ACL enforcer behind the narrow interface
// FlashQ's storage decorator needs: "can subject do action on object",
// checked directly in front of PartitionLog rather than as RPC
// middleware. Consumer offset stores are not wrapped.
package auth

import "github.com/casbin/casbin/v2"

// Object and action names the ACL policy file is written against.
const (
	ObjectWildcard = "*"
	ProduceAction  = "produce"
	ConsumeAction  = "consume"
)

// Authorizer answers produce/consume permission checks against a loaded
// casbin model and policy.
type Authorizer struct {
	enforcer *casbin.Enforcer
}

// New loads the ACL model and policy files and returns a ready Authorizer.
func New(modelFile, policyFile string) (*Authorizer, error) {
	enforcer, err := casbin.NewEnforcer(modelFile, policyFile)
	if err != nil {
		return nil, err
	}
	return &Authorizer{enforcer: enforcer}, nil
}

// Authorize reports whether subject may perform action on object,
// returning ErrPermissionDenied if not.
func (a *Authorizer) Authorize(subject, object, action string) error {
	ok, err := a.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied{Subject: subject, Object: object, Action: action}
	}
	return nil
}
