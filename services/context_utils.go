package services

import "context"

// OperationContext carries the tenant and actor every entry point operates
// under. Controllers build it from JWT claims; nothing in the services layer
// reaches into global auth state.
type OperationContext struct {
	TenantID int
	ActorID  int
}

func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
