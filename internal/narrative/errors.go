package narrative

import "github.com/nexis-health/nexis-backend/internal/narrative/errs"

// Aliases of the sentinels in the errs leaf package, preserved here so
// callers keep using narrative.Err*; the values are identical, so
// errors.Is matches across both packages.
var (
	ErrProviderUnavailable = errs.ErrProviderUnavailable
	ErrGenerateTimeout     = errs.ErrGenerateTimeout
	ErrInvalidResponse     = errs.ErrInvalidResponse
)
