package auth

import "fmt"

// ErrPermissionDenied is returned when a subject isn't allowed to perform
// action on object under the loaded ACL policy.
type ErrPermissionDenied struct {
	Subject string
	Object  string
	Action  string
}

func (e ErrPermissionDenied) Error() string {
	return fmt.Sprintf("auth: %s is not permitted to %s on %s", e.Subject, e.Action, e.Object)
}
