package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	personamodels "bazaar/internal/persona/models"
	id "bazaar/pkg/domain"
	dErrors "bazaar/pkg/domain-errors"
)

var testNow = time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)

func newTestApplication(t *testing.T, status Status) *Application {
	t.Helper()
	app, err := NewApplication(id.NewApplicationID(), id.VendorID(mustUUID()), TypeStandard, testNow)
	require.NoError(t, err)
	app.Status = status
	return app
}

func mustUUID() [16]byte {
	return [16]byte{0xde, 0xad, 0xbe, 0xef, 0, 0, 0x40, 0, 0x80, 0, 0, 0, 0, 0, 0, 1}
}

func TestNewApplication(t *testing.T) {
	app := newTestApplication(t, StatusPending)
	assert.Equal(t, StatusPending, app.Status)
	assert.Equal(t, 1, app.CurrentStep)
	assert.Equal(t, len(StepTemplate(TypeStandard)), app.TotalSteps)
	assert.Equal(t, personamodels.StatusNotStarted, app.PersonaStatus)

	_, err := NewApplication(id.NewApplicationID(), id.VendorID{}, TypeStandard, testNow)
	require.Error(t, err, "nil vendor id rejected")

	_, err = NewApplication(id.NewApplicationID(), id.VendorID(mustUUID()), ApplicationType("BOGUS"), testNow)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from, to Status
		legal    bool
	}{
		{StatusPending, StatusUnderReview, true},
		{StatusPending, StatusNeedsRevision, true},
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusClosed, true},
		{StatusUnderReview, StatusApproved, true},
		{StatusUnderReview, StatusRejected, true},
		{StatusNeedsRevision, StatusUnderReview, true},
		{StatusNeedsRevision, StatusClosed, true},
		{StatusRejected, StatusUnderReview, true},
		{StatusRejected, StatusClosed, true},
		{StatusClosed, StatusUnderReview, true}, // override-gated at the service
		{StatusApproved, StatusUnderReview, false},
		{StatusApproved, StatusRejected, false},
		{StatusApproved, StatusClosed, false},
		{StatusRejected, StatusApproved, false},
		{StatusClosed, StatusApproved, false},
		{StatusClosed, StatusRejected, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.legal, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTerminalStatusesRefuseReview(t *testing.T) {
	for _, status := range []Status{StatusApproved, StatusClosed} {
		app := newTestApplication(t, status)

		err := app.CanApprove(false)
		require.Error(t, err, status)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))

		err = app.CanReject("fraud signals")
		require.Error(t, err, status)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))

		err = app.CanRequestRevision("missing documents")
		require.Error(t, err, status)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	}
}

func TestEmptyReasonsAreValidationErrors(t *testing.T) {
	app := newTestApplication(t, StatusUnderReview)

	assert.True(t, dErrors.HasCode(app.CanReject(""), dErrors.CodeValidation))
	assert.True(t, dErrors.HasCode(app.CanReject("   "), dErrors.CodeValidation))
	assert.True(t, dErrors.HasCode(app.CanRequestRevision(""), dErrors.CodeValidation))
	assert.True(t, dErrors.HasCode(app.CanClose(""), dErrors.CodeValidation))

	rejected := newTestApplication(t, StatusRejected)
	assert.True(t, dErrors.HasCode(rejected.CanReopen("", false), dErrors.CodeValidation))
}

func TestApproveThenRejectIsIllegal(t *testing.T) {
	app := newTestApplication(t, StatusUnderReview)
	admin := id.AdminID(mustUUID())

	require.NoError(t, app.CanApprove(false))
	app.ApplyApproval(admin, testNow)

	assert.Equal(t, StatusApproved, app.Status)
	require.NotNil(t, app.ApprovedAt)
	assert.Equal(t, testNow, *app.ApprovedAt)
	require.NotNil(t, app.ReviewedBy)

	err := app.CanReject("too late")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func TestApprovalPersonaPolicy(t *testing.T) {
	app := newTestApplication(t, StatusUnderReview)
	app.PersonaStatus = personamodels.StatusFailed

	err := app.CanApprove(true)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	app.PersonaStatus = personamodels.StatusOverridden
	assert.NoError(t, app.CanApprove(true))

	app.PersonaStatus = personamodels.StatusVerified
	assert.NoError(t, app.CanApprove(true))

	// Policy off: verification state is irrelevant.
	app.PersonaStatus = personamodels.StatusNotStarted
	assert.NoError(t, app.CanApprove(false))
}

func TestRevisionRoundTrip(t *testing.T) {
	app := newTestApplication(t, StatusUnderReview)
	admin := id.AdminID(mustUUID())

	require.NoError(t, app.CanRequestRevision("missing tax ID"))
	app.ApplyRevisionRequest("missing tax ID", admin, testNow)

	assert.Equal(t, StatusNeedsRevision, app.Status)
	assert.True(t, app.RevisionRequested)
	assert.Equal(t, "missing tax ID", app.RevisionReason)
	require.NotNil(t, app.RevisionRequestedBy)

	later := testNow.Add(48 * time.Hour)
	require.NoError(t, app.CanCompleteRevision())
	app.ApplyRevisionCompletion(later)

	assert.Equal(t, StatusUnderReview, app.Status)
	assert.False(t, app.RevisionRequested)
	require.NotNil(t, app.RevisionCompletedAt)
	assert.Equal(t, later, *app.RevisionCompletedAt)

	// Resubmitting twice is illegal.
	assert.True(t, dErrors.HasCode(app.CanCompleteRevision(), dErrors.CodeInvalidTransition))
}

func TestAdminTransitionsCloseRevisionRequest(t *testing.T) {
	admin := id.AdminID(mustUUID())
	requested := func(t *testing.T) *Application {
		app := newTestApplication(t, StatusUnderReview)
		app.ApplyRevisionRequest("missing tax ID", admin, testNow)
		require.True(t, app.RevisionRequested)
		return app
	}

	t.Run("rejection", func(t *testing.T) {
		app := requested(t)
		app.ApplyRejection("fraud signals", admin, testNow)
		assert.False(t, app.RevisionRequested)
	})
	t.Run("approval", func(t *testing.T) {
		app := requested(t)
		app.ApplyApproval(admin, testNow)
		assert.False(t, app.RevisionRequested)
	})
	t.Run("closure", func(t *testing.T) {
		app := requested(t)
		app.ApplyClosure("vendor withdrew", admin, testNow)
		assert.False(t, app.RevisionRequested)
	})
	t.Run("reopen after closure", func(t *testing.T) {
		app := requested(t)
		app.ApplyClosure("vendor withdrew", admin, testNow)
		app.RevisionRequested = true // simulate a row written before the flag was cleared
		app.ApplyReopen("closed in error", admin, testNow)
		assert.Equal(t, StatusUnderReview, app.Status)
		assert.False(t, app.RevisionRequested)
	})
}

func TestReopenPrivilege(t *testing.T) {
	t.Run("rejected needs no elevation", func(t *testing.T) {
		app := newTestApplication(t, StatusRejected)
		require.NoError(t, app.CanReopen("new evidence submitted", false))
		app.ApplyReopen("new evidence submitted", id.AdminID(mustUUID()), testNow)
		assert.Equal(t, StatusUnderReview, app.Status)
		assert.Equal(t, "new evidence submitted", app.ReopenReason)
	})

	t.Run("closed requires override capability", func(t *testing.T) {
		app := newTestApplication(t, StatusClosed)
		err := app.CanReopen("appeal granted", false)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

		require.NoError(t, app.CanReopen("appeal granted", true))
	})

	t.Run("under review cannot be reopened", func(t *testing.T) {
		app := newTestApplication(t, StatusUnderReview)
		err := app.CanReopen("why not", true)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func TestCloseGuards(t *testing.T) {
	approved := newTestApplication(t, StatusApproved)
	assert.True(t, dErrors.HasCode(approved.CanClose("tos breach"), dErrors.CodeInvalidTransition))

	closed := newTestApplication(t, StatusClosed)
	assert.True(t, dErrors.HasCode(closed.CanClose("again"), dErrors.CodeInvalidTransition))

	pending := newTestApplication(t, StatusPending)
	require.NoError(t, pending.CanClose("duplicate account"))
	pending.ApplyClosure("duplicate account", id.AdminID(mustUUID()), testNow)
	assert.Equal(t, StatusClosed, pending.Status)
	assert.Equal(t, "duplicate account", pending.CloseReason)
}

func TestGuardsMirrorUIAffordances(t *testing.T) {
	tests := []struct {
		status Status
		want   Guards
	}{
		{StatusPending, Guards{CanApprove: true, CanReject: true, CanRequestRevision: true, CanClose: true}},
		{StatusUnderReview, Guards{CanApprove: true, CanReject: true, CanRequestRevision: true, CanClose: true}},
		{StatusNeedsRevision, Guards{CanApprove: true, CanReject: true, CanRequestRevision: true, CanClose: true}},
		{StatusRejected, Guards{CanApprove: true, CanReject: true, CanRequestRevision: true, CanReopen: true, CanClose: true}},
		{StatusApproved, Guards{}},
		{StatusClosed, Guards{CanReopen: true}},
	}
	for _, tt := range tests {
		app := newTestApplication(t, tt.status)
		assert.Equal(t, tt.want, app.Guards(), tt.status)
	}
}

func TestAdvanceStep(t *testing.T) {
	app := newTestApplication(t, StatusUnderReview)
	steps := SeedSteps(app.ID, TypeStandard, testNow)

	steps[0].ApplyCompletion(stepData(), nil, testNow)
	app.AdvanceStep(steps, testNow)
	assert.Equal(t, 2, app.CurrentStep)

	steps[1].ApplyCompletion(stepData(), nil, testNow)
	steps[2].ApplyCompletion(stepData(), nil, testNow)
	steps[3].ApplyCompletion(stepData(), nil, testNow)
	require.NoError(t, steps[4].CanSkip())
	steps[4].ApplySkip(testNow)
	app.AdvanceStep(steps, testNow)
	assert.Equal(t, app.TotalSteps, app.CurrentStep)
}
