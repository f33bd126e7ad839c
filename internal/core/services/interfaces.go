package services

import (
	"context"

	"village-registry/internal/core/domain"
)

// CodeGenerator mints reference numbers and verification codes.
// ReferenceGenerator is the production implementation.
type CodeGenerator interface {
	GenerateReferenceNumber() string
	GenerateVerificationCode(subject, location, reference string) string
}

// Renderer turns resident and address data into document bytes. Missing
// required fields must fail with domain.ErrRender.
type Renderer interface {
	Render(ctx context.Context, resident domain.ResidentSnapshot, address domain.AddressSnapshot, meta domain.RenderMeta) ([]byte, error)
}

// ArtifactStore keeps rendered artifacts outside the database. Save must fail
// with an error matching fs.ErrExist when name is already taken.
type ArtifactStore interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
	Load(ctx context.Context, path string) ([]byte, error)
	Remove(ctx context.Context, path string) error
	List(ctx context.Context) ([]domain.ArtifactInfo, error)
}

// ResidentLocker serializes issuance and deletion for one resident.
// The returned func releases the lock and is safe to call more than once.
type ResidentLocker interface {
	Lock(ctx context.Context, residentID uint) (func(), error)
}
