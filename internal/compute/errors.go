package compute

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

var (
	// ErrInstanceNotFound is returned when the instance id is unknown to the cloud.
	ErrInstanceNotFound = errors.New("instance not found")
	// ErrInstanceReadyTimeout is returned when an instance does not become ready in time.
	ErrInstanceReadyTimeout = errors.New("instance failed to become ready in time")
	// ErrInstancePackage is returned when packaging an instance fails.
	ErrInstancePackage = errors.New("instance packaging failed")
	// ErrInstancePackageTimeout is returned when packaging an instance takes too long.
	ErrInstancePackageTimeout = errors.New("instance packaging timed out")
	// ErrRsync is returned when syncing folders to an instance fails.
	ErrRsync = errors.New("rsync to instance failed")
	// ErrMkdir is returned when creating a synced folder on an instance fails.
	ErrMkdir = errors.New("mkdir on instance failed")
	// ErrLoadBalancerNotFound is returned when the configured ELB does not exist.
	ErrLoadBalancerNotFound = errors.New("load balancer does not exist")
	// ErrNotFinalized is returned by Connect for configurations that were never finalized.
	ErrNotFinalized = errors.New("provider configuration is not finalized")
)

// CloudError is an error reported by the cloud API itself.
type CloudError struct {
	Op      string
	Code    string
	Message string
}

func (e *CloudError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

// InternalCloudError is any other failure talking to the cloud, such as a
// transport or signing error.
type InternalCloudError struct {
	Op  string
	Err error
}

func (e *InternalCloudError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InternalCloudError) Unwrap() error {
	return e.Err
}

// classify wraps err from operation op into a CloudError or InternalCloudError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &CloudError{Op: op, Code: apiErr.ErrorCode(), Message: apiErr.ErrorMessage()}
	}
	return &InternalCloudError{Op: op, Err: err}
}

// IsCloudCode reports whether err is a CloudError with the given code.
func IsCloudCode(err error, code string) bool {
	var cloudErr *CloudError
	return errors.As(err, &cloudErr) && cloudErr.Code == code
}
