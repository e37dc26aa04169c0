package domain

import "fmt"

type ContainerNotFoundError struct {
	Container string
}

func (e ContainerNotFoundError) Error() string {
	return fmt.Sprintf("container %s does not exist", e.Container)
}

type ContainerNotEmptyError struct {
	Container string
}

func (e ContainerNotEmptyError) Error() string {
	return fmt.Sprintf("container %s is not empty", e.Container)
}

type KeyNotFoundError struct {
	Container string
	Key       string
}

func (e KeyNotFoundError) Error() string {
	return fmt.Sprintf("key %s does not exist in container %s", e.Key, e.Container)
}

type UploadNotFoundError struct {
	Container string
	Key       string
	UploadID  string
}

func (e UploadNotFoundError) Error() string {
	return fmt.Sprintf("multipart upload %s for %s/%s does not exist", e.UploadID, e.Container, e.Key)
}

type InvalidPartError struct {
	UploadID   string
	PartNumber int
	Reason     string
}

func (e InvalidPartError) Error() string {
	return fmt.Sprintf("invalid part %d for multipart upload %s: %s", e.PartNumber, e.UploadID, e.Reason)
}

// StoreError wraps an unexpected failure from a backing store.
type StoreError struct {
	Op   string
	base error
}

func NewStoreError(op string, base error) StoreError {
	return StoreError{Op: op, base: base}
}

func (e StoreError) Error() string {
	return fmt.Sprintf("unable to %s: %v", e.Op, e.base)
}

func (e StoreError) Unwrap() error {
	return e.base
}

type PreconditionFailedError struct {
	Container string
	Key       string
	ETag      string
}

func (e PreconditionFailedError) Error() string {
	return fmt.Sprintf("%s/%s does not match ETag %s", e.Container, e.Key, e.ETag)
}
