package core

import "context"

// IService is implemented by every remote provider. Init validates
// configuration and prepares clients; Cleanup releases them.
type IService interface {
	Init(ctx context.Context) error
	Cleanup() error
}
