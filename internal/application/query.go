package application

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
)

// queryValidator checks RankQuery struct tags. validator.Validate caches
// struct metadata and is safe for concurrent use.
var queryValidator = validator.New()

// ValidateQuery checks q against the closed sort-key and tier enums and the
// limit bounds. A maxLimit of zero disables the upper bound.
// It returns a *domain.ValidationError whose causes match
// domain.ErrInvalidSortKey, domain.ErrInvalidTier or domain.ErrInvalidLimit.
func ValidateQuery(q domain.RankQuery, maxLimit int) error {
	verr := domain.NewValidationError("RankQuery")

	if err := queryValidator.Struct(q); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("query validation failed: %w", err)
		}
		for _, fe := range fieldErrs {
			switch fe.Field() {
			case "SortBy":
				verr.Add(fmt.Errorf("%w: %q", domain.ErrInvalidSortKey, q.SortBy))
			case "FilterTier":
				verr.Add(fmt.Errorf("%w: %q", domain.ErrInvalidTier, q.FilterTier))
			case "Limit":
				verr.Add(fmt.Errorf("%w: %d (must be positive)", domain.ErrInvalidLimit, q.Limit))
			default:
				verr.AddError(fe.Error())
			}
		}
	}

	if maxLimit > 0 && q.Limit > maxLimit {
		verr.Add(fmt.Errorf("%w: %d (maximum is %d)", domain.ErrInvalidLimit, q.Limit, maxLimit))
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}
