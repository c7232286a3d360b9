package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradehub-api/internal/models"
	"github.com/noah-isme/gradehub-api/internal/service"
)

func TestClaimBumpsUnstartedToInProgress(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t)
	assignment := f.seedAssignment(t, course.ID, "")
	submission := f.seedSubmission(t, assignment.ID, nil, models.StatusUnstarted)
	claims := service.NewClaimService(f.submissions, f.audit, testLogger())

	require.NoError(t, claims.Claim(context.Background(), submission.ID, service.Actor{ID: 1}))

	updated, err := f.submissions.GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusInProgress, updated.Status)
	require.NotNil(t, updated.ClaimedByID)
	require.Equal(t, uint(1), *updated.ClaimedByID)
	require.NotNil(t, updated.ClaimedAt)
	require.NotNil(t, updated.LastOpenedAt)
}

func TestClaimTakeoverIsAllowedAndAudited(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t)
	assignment := f.seedAssignment(t, course.ID, "")
	submission := f.seedSubmission(t, assignment.ID, nil, models.StatusUnstarted)
	claims := service.NewClaimService(f.submissions, f.audit, testLogger())

	require.NoError(t, claims.Claim(context.Background(), submission.ID, service.Actor{ID: 1}))
	require.NoError(t, claims.Claim(context.Background(), submission.ID, service.Actor{ID: 2}))

	updated, err := f.submissions.GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, uint(2), *updated.ClaimedByID)

	var entries []models.AuditLogEntry
	require.NoError(t, f.db.Where("action = ?", "submission.claim").Order("id ASC").Find(&entries).Error)
	require.Len(t, entries, 2)
	require.EqualValues(t, 1, entries[1].Detail["previous_grader_id"])
}

func TestReleaseRejectsForeignClaim(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t)
	assignment := f.seedAssignment(t, course.ID, "")
	submission := f.seedSubmission(t, assignment.ID, nil, models.StatusUnstarted)
	claims := service.NewClaimService(f.submissions, f.audit, testLogger())

	require.NoError(t, claims.Claim(context.Background(), submission.ID, service.Actor{ID: 1}))
	require.ErrorIs(t, claims.Release(context.Background(), submission.ID, service.Actor{ID: 2}), service.ErrClaimedByOther)
	require.NoError(t, claims.Release(context.Background(), submission.ID, service.Actor{ID: 1}))

	updated, err := f.submissions.GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Nil(t, updated.ClaimedByID)

	// ForceClaim takes over without the ownership check.
	require.NoError(t, claims.Claim(context.Background(), submission.ID, service.Actor{ID: 1}))
	require.NoError(t, claims.ForceClaim(context.Background(), submission.ID, service.Actor{ID: 3}))
	updated, err = f.submissions.GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, uint(3), *updated.ClaimedByID)
}

func TestClaimReopensFinishedSubmissions(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t)
	assignment := f.seedAssignment(t, course.ID, "")
	claims := service.NewClaimService(f.submissions, f.audit, testLogger())
	actor := service.Actor{ID: 5}
	ctx := context.Background()

	// Re-claiming a reviewed submission puts it back in the active queue.
	done := f.seedSubmission(t, assignment.ID, nil, models.StatusDone)
	require.NoError(t, claims.Claim(ctx, done.ID, actor))
	updated, err := f.submissions.GetByID(ctx, done.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusInProgress, updated.Status)

	flagged := f.seedSubmission(t, assignment.ID, nil, models.StatusFlagged)
	require.NoError(t, claims.ForceClaim(ctx, flagged.ID, actor))
	updated, err = f.submissions.GetByID(ctx, flagged.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusInProgress, updated.Status)

	// Errored submissions need an explicit status change to resume.
	errored := f.seedSubmission(t, assignment.ID, nil, models.StatusError)
	require.NoError(t, claims.Claim(ctx, errored.ID, actor))
	updated, err = f.submissions.GetByID(ctx, errored.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusError, updated.Status)
	require.Equal(t, actor.ID, *updated.ClaimedByID)
}

func TestTouchUnknownSubmission(t *testing.T) {
	f := newFixture(t)
	claims := service.NewClaimService(f.submissions, f.audit, testLogger())

	require.ErrorIs(t, claims.Touch(context.Background(), 404), service.ErrSubmissionNotFound)
}

func TestUpdateStatusEnforcesTransitions(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t)
	assignment := f.seedAssignment(t, course.ID, "")
	submission := f.seedSubmission(t, assignment.ID, nil, models.StatusUnstarted)
	claims := service.NewClaimService(f.submissions, f.audit, testLogger())
	actor := service.Actor{ID: 1}
	ctx := context.Background()

	// unstarted cannot jump straight to done.
	err := claims.UpdateStatus(ctx, submission.ID, models.StatusDone, actor)
	require.ErrorIs(t, err, service.ErrInvalidTransition)

	updated, err := f.submissions.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusUnstarted, updated.Status)

	require.NoError(t, claims.UpdateStatus(ctx, submission.ID, models.StatusInProgress, actor))
	require.NoError(t, claims.UpdateStatus(ctx, submission.ID, models.StatusDone, actor))

	// done can be re-opened but not marked unstarted.
	require.ErrorIs(t, claims.UpdateStatus(ctx, submission.ID, models.StatusUnstarted, actor), service.ErrInvalidTransition)
	require.NoError(t, claims.UpdateStatus(ctx, submission.ID, models.StatusInProgress, actor))

	// flagged and error are reachable from anywhere.
	require.NoError(t, claims.UpdateStatus(ctx, submission.ID, models.StatusFlagged, actor))
	require.NoError(t, claims.UpdateStatus(ctx, submission.ID, models.StatusError, actor))
}

func TestBookmarkFindsLastOpenedSubmission(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t)
	assignment := f.seedAssignment(t, course.ID, "")
	first := f.seedSubmission(t, assignment.ID, nil, models.StatusUnstarted)
	second := f.seedSubmission(t, assignment.ID, nil, models.StatusUnstarted)
	claims := service.NewClaimService(f.submissions, f.audit, testLogger())
	actor := service.Actor{ID: 7}
	ctx := context.Background()

	empty, err := claims.Bookmark(ctx, assignment.ID, actor)
	require.NoError(t, err)
	require.Nil(t, empty.SubmissionID)

	require.NoError(t, claims.Claim(ctx, first.ID, actor))
	require.NoError(t, claims.Claim(ctx, second.ID, actor))
	require.NoError(t, claims.Touch(ctx, second.ID))

	bookmark, err := claims.Bookmark(ctx, assignment.ID, actor)
	require.NoError(t, err)
	require.NotNil(t, bookmark.SubmissionID)
	require.Equal(t, second.ID, *bookmark.SubmissionID)
}
