package creditgate

import (
	"github.com/kailas-cloud/creditgate/internal/domain"
	meteringuc "github.com/kailas-cloud/creditgate/internal/usecase/metering"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound            = domain.ErrNotFound
	ErrAlreadyExists       = domain.ErrAlreadyExists
	ErrValidation          = domain.ErrValidation
	ErrForbidden           = domain.ErrForbidden
	ErrInsufficientCredits = domain.ErrInsufficientCredits
	ErrStorageUnavailable  = domain.ErrStorageUnavailable
	ErrUnauthorized        = domain.ErrUnauthorized
	ErrInvalidCredentials  = domain.ErrInvalidCredentials

	// ErrDrained marks a charge whose work completed but whose credit was
	// taken by a concurrent charge. It also matches ErrInsufficientCredits.
	ErrDrained = meteringuc.ErrDrained
)
