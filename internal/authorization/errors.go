package authorization

import (
	"fmt"

	"github.com/smallbiznis/adminwatch/internal/apperror"
)

var (
	ErrForbidden     = fmt.Errorf("%w: forbidden", apperror.ErrUnauthorized)
	ErrInvalidActor  = fmt.Errorf("%w: invalid_actor", apperror.ErrUnauthorized)
	ErrInvalidObject = fmt.Errorf("%w: invalid_object", apperror.ErrValidationFailed)
	ErrInvalidAction = fmt.Errorf("%w: invalid_action", apperror.ErrValidationFailed)
)
