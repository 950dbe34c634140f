package profile

import "context"

type Store interface {
	Create(ctx context.Context, p *Profile) error
	Get(ctx context.Context, profileID string) (*Profile, error)
	Update(ctx context.Context, p *Profile) error
	List(ctx context.Context, opts ListOpts) ([]*Profile, error)
}

type ListOpts struct {
	Limit  int
	Offset int
}
