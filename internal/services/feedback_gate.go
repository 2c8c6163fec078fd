package services

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
)

const (
	RedirectHome     = "/"
	RedirectFeedback = "/feedback"
	RedirectLogin    = "/login"
)

// FeedbackGate decides whether a participant is sent to the feedback
// flow after submitting.
type FeedbackGate interface {
	NeedsFeedback(ctx context.Context, api Backend, userID models.ID) (bool, error)
}

// ProfileFeedbackGate reads feedback_given from the user profile.
type ProfileFeedbackGate struct{}

func (ProfileFeedbackGate) NeedsFeedback(ctx context.Context, api Backend, userID models.ID) (bool, error) {
	if userID.IsZero() {
		return false, nil
	}
	user, err := api.GetUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to read feedback status: %w", err)
	}
	return !user.FeedbackGiven, nil
}
