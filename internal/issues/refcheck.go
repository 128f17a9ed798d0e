package issues

import (
	"context"
	"errors"
	"fmt"

	"github.com/joescharf/issues/internal/store"
)

// checkAssignee verifies that a non-nil user id names an existing user.
// A nil id means unassigned and always passes.
func checkAssignee(ctx context.Context, users store.UserStore, userID *string) error {
	if userID == nil {
		return nil
	}
	_, err := users.GetUser(ctx, *userID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrInvalidReference, *userID)
	}
	if err != nil {
		return fmt.Errorf("check assignee: %w", err)
	}
	return nil
}
