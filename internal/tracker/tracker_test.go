package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/homekeep/internal/billing"
	"github.com/dukerupert/homekeep/internal/model"
	"github.com/dukerupert/homekeep/internal/ocr"
	"github.com/dukerupert/homekeep/internal/store"
	"github.com/dukerupert/homekeep/internal/websocket"
)

var testStart = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeReminders struct {
	mu        sync.Mutex
	pending   map[string]model.Notification
	scheduled int
	cancelErr error
}

func reminderKey(kind, refID string) string { return kind + "/" + refID }

func (f *fakeReminders) Schedule(_ context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[reminderKey(n.Kind, n.RefID)] = *n
	f.scheduled++
	return nil
}

func (f *fakeReminders) scheduleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scheduled
}

func (f *fakeReminders) Cancel(_ context.Context, kind, refID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	delete(f.pending, reminderKey(kind, refID))
	return nil
}

func (f *fakeReminders) get(kind, refID string) (model.Notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.pending[reminderKey(kind, refID)]
	return n, ok
}

func (f *fakeReminders) fail(err error) {
	f.mu.Lock()
	f.cancelErr = err
	f.mu.Unlock()
}

type fakeHub struct {
	mu   sync.Mutex
	msgs []websocket.Message
}

func (f *fakeHub) Broadcast(msg websocket.Message) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return 1
}

func (f *fakeHub) last() websocket.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.msgs) == 0 {
		return websocket.Message{}
	}
	return f.msgs[len(f.msgs)-1]
}

type fakePayments struct {
	status    billing.Status
	err       error
	cancelled []string
}

func (f *fakePayments) CreateCheckoutSession(_ context.Context, userID string) (string, error) {
	return "https://checkout.example.com/" + userID, f.err
}

func (f *fakePayments) CheckSubscriptionStatus(context.Context, string) (billing.Status, error) {
	return f.status, f.err
}

func (f *fakePayments) CancelSubscription(_ context.Context, userID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.cancelled = append(f.cancelled, userID)
	f.status.CancelAtPeriodEnd = true
	return true, nil
}

type fakeDocuments struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func (f *fakeDocuments) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("documents/%d-%s", len(f.objects), name)
	f.objects[key] = data
	return key, nil
}

func (f *fakeDocuments) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeDocuments) URL(_ context.Context, key string) (string, error) {
	return "https://files.example.com/" + key + "?signed", nil
}

type fakeExtractor struct {
	result *ocr.Result
	err    error
}

func (f fakeExtractor) Extract(context.Context, string, []byte) (*ocr.Result, error) {
	return f.result, f.err
}

type testEnv struct {
	tracker   *Tracker
	stores    *store.Stores
	clock     *clock
	reminders *fakeReminders
	hub       *fakeHub
	payments  *fakePayments
	documents *fakeDocuments
}

func newTestEnv(t *testing.T, configure ...func(*Deps)) *testEnv {
	t.Helper()
	stores, err := store.Open(":memory:", store.DefaultTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	env := &testEnv{
		stores:    stores,
		clock:     &clock{now: testStart},
		reminders: &fakeReminders{pending: map[string]model.Notification{}},
		hub:       &fakeHub{},
		payments:  &fakePayments{},
		documents: &fakeDocuments{objects: map[string][]byte{}},
	}
	var n int
	deps := Deps{
		Stores:    stores,
		Reminders: env.reminders,
		Hub:       env.hub,
		Payments:  env.payments,
		Documents: env.documents,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:       env.clock.Now,
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	}
	for _, fn := range configure {
		fn(&deps)
	}
	env.tracker = New(deps)
	require.NoError(t, env.tracker.Init(context.Background()))
	return env
}

func (e *testEnv) addProperty(t *testing.T, name string) *model.Property {
	t.Helper()
	p, err := e.tracker.AddProperty(context.Background(), model.Property{Name: name, Address: "1 Main St"})
	require.NoError(t, err)
	return p
}

func (e *testEnv) addTask(t *testing.T, propertyID, title string, f model.Frequency, due time.Time) *model.MaintenanceTask {
	t.Helper()
	task, err := e.tracker.AddMaintenanceTask(context.Background(), model.MaintenanceTask{
		PropertyID: propertyID,
		Title:      title,
		Category:   model.CategoryHVAC,
		Frequency:  f,
		NextDue:    due,
	})
	require.NoError(t, err)
	return task
}

func (e *testEnv) addWarranty(t *testing.T, propertyID, item string, expiry time.Time, docs ...string) *model.Warranty {
	t.Helper()
	w, err := e.tracker.AddWarranty(context.Background(), model.Warranty{
		PropertyID:   propertyID,
		ItemName:     item,
		Category:     model.CategoryAppliances,
		PurchaseDate: testStart.AddDate(-1, 0, 0),
		ExpiryDate:   expiry,
		Documents:    docs,
	})
	require.NoError(t, err)
	return w
}

func (e *testEnv) complete(t *testing.T, taskID string, on time.Time) *Completion {
	t.Helper()
	c, err := e.tracker.CompleteMaintenanceTask(context.Background(), taskID, model.CompletionData{
		CompletedDate: on,
		Cost:          120,
		Notes:         "filter swapped",
	})
	require.NoError(t, err)
	return c
}

var quarterly = model.Frequency{Value: 3, Unit: model.UnitMonths}

func TestAddPropertyAssignsIdentity(t *testing.T) {
	env := newTestEnv(t)

	p := env.addProperty(t, "Lake House")

	assert.Equal(t, "id-1", p.ID)
	assert.Equal(t, testStart, p.CreatedAt)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)

	got, ok := env.tracker.Property(p.ID)
	require.True(t, ok)
	assert.Equal(t, "Lake House", got.Name)

	msg := env.hub.last()
	assert.Equal(t, websocket.EntityProperty, msg.Entity)
	assert.Equal(t, websocket.ActionCreated, msg.Action)
	assert.Equal(t, p.ID, msg.ID)
}

func TestUpdatePropertyKeepsCreatedAt(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProperty(t, "Cabin")

	env.clock.Advance(time.Hour)
	p.Name = "Mountain Cabin"
	updated, err := env.tracker.UpdateProperty(context.Background(), *p)
	require.NoError(t, err)

	assert.Equal(t, testStart, updated.CreatedAt)
	assert.Equal(t, testStart.Add(time.Hour), updated.UpdatedAt)
	got, _ := env.tracker.Property(p.ID)
	assert.Equal(t, "Mountain Cabin", got.Name)
}

func TestTimestampsStrictlyIncrease(t *testing.T) {
	env := newTestEnv(t)

	a := env.addProperty(t, "A")
	b := env.addProperty(t, "B")

	assert.True(t, b.CreatedAt.After(a.CreatedAt), "frozen clock must still give distinct stamps")
}

func TestPropertiesSortedByName(t *testing.T) {
	env := newTestEnv(t)
	env.addProperty(t, "beach house")
	env.addProperty(t, "Apartment")
	env.addProperty(t, "Cabin")

	var names []string
	for _, p := range env.tracker.Properties() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Apartment", "beach house", "Cabin"}, names)
}

func TestAddTaskRequiresProperty(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.tracker.AddMaintenanceTask(context.Background(), model.MaintenanceTask{
		PropertyID: "missing",
		Title:      "Clean gutters",
		Category:   model.CategoryOutdoor,
		Frequency:  quarterly,
		NextDue:    testStart,
	})
	assert.ErrorIs(t, err, ErrPropertyNotFound)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, env.tracker.Tasks())
}

func TestAddTaskRejectsInvalidRecord(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProperty(t, "Home")

	_, err := env.tracker.AddMaintenanceTask(context.Background(), model.MaintenanceTask{
		PropertyID: p.ID,
		Title:      "Bleed radiators",
		Category:   model.CategoryHVAC,
		Frequency:  model.Frequency{Value: 1, Unit: "fortnights"},
		NextDue:    testStart,
	})
	assert.ErrorIs(t, err, model.ErrInvalid)
}

func TestAddTaskArmsReminder(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProperty(t, "Home")
	due := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

	task := env.addTask(t, p.ID, "Replace HVAC filter", quarterly, due)

	assert.Equal(t, due, task.NextDue, "NextDue is stored as given")
	assert.Nil(t, task.LastCompleted)
	n, ok := env.reminders.get(model.NotifKindTaskDue, task.ID)
	require.True(t, ok)
	assert.Equal(t, due.Add(-48*time.Hour), n.FireAt)
	assert.Contains(t, n.Body, "Replace HVAC filter")
}

func TestTasksSortedByNextDue(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProperty(t, "Home")
	env.addTask(t, p.ID, "later", quarterly, testStart.AddDate(0, 2, 0))
	env.addTask(t, p.ID, "sooner", quarterly, testStart.AddDate(0, 0, 3))
	env.addTask(t, p.ID, "middle", quarterly, testStart.AddDate(0, 1, 0))

	var titles []string
	for _, task := range env.tracker.Tasks() {
		titles = append(titles, task.Title)
	}
	assert.Equal(t, []string{"sooner", "middle", "later"}, titles)
}

func TestCompleteTaskAdvancesByFrequency(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProperty(t, "Home")
	task := env.addTask(t, p.ID, "Replace HVAC filter", quarterly, testStart)
	completed := time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC)

	c := env.complete(t, task.ID, completed)

	want := time.Date(2024, 6, 2, 15, 0, 0, 0, time.UTC)
	require.NotNil(t, c.Task)
	assert.Equal(t, want, c.Task.NextDue)
	require.NotNil(t, c.Task.LastCompleted)
	assert.Equal(t, completed, *c.Task.LastCompleted)

	assert.Equal(t, task.ID, c.Log.TaskID)
	assert.Equal(t, p.ID, c.Log.PropertyID)
	assert.Equal(t, 120.0, c.Log.Cost)

	stored, err := env.stores.Tasks.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, want, stored.NextDue)

	logs := env.tracker.GetMaintenanceLogsForTask(task.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, c.Log.ID, logs[0].ID)

	n, ok := env.reminders.get(model.NotifKindTaskDue, task.ID)
	require.True(t, ok)
	assert.Equal(t, want.Add(-DueSoonWindow), n.FireAt)

	msg := env.hub.last()
	assert.Equal(t, websocket.ActionCompleted, msg.Action)
	assert.Equal(t, task.ID, msg.ID)
}

func TestCompleteTaskClampsMonthEnd(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProperty(t, "Home")
	task := env.addTask(t, p.ID, "Test smoke alarms", model.Frequency{Value: 1, Unit: model.UnitMonths}, testStart)

	c := env.complete(t, task.ID, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), c.Task.NextDue)
}

func TestCompletionsMoveDueDateForward(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProperty(t, "Home")
	task := env.addTask(t, p.ID, "Flush water heater", model.Frequency{Value: 2, Unit: model.UnitWeeks}, testStart)

	var prev time.Time
	done := testStart
	for i := 0; i < 4; i++ {
		env.clock.Advance(24 * time.Hour)
		c := env.complete(t, task.ID, done)
		assert.True(t, c.Task.NextDue.After(prev), "completion %d did not move NextDue forward", i)
		assert.Equal(t, done.AddDate(0, 0, 14), c.Task.NextDue)
		prev = c.Task.NextDue
		done = c.Task.NextDue
	}

	logs := env.tracker.GetMaintenanceLogsForTask(task.ID)
	require.Len(t, logs, 4)
	for i := 1; i < len(logs); i++ {
		assert.True(t, logs[i-1].CompletedDate.After(logs[i].CompletedDate), "logs must be newest first")
	}
}

func TestCompleteMissingTask(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.tracker.CompleteMaintenanceTask(context.Background(), "nope", model.CompletionData{CompletedDate: testStart})

	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.Empty(t, env.tracker.MaintenanceLogs(), "no log is written for a missing task")
}

func TestCompleteWithUnknownProvider(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProperty(t, "Home")
	task := env.addTask(t, p.ID, "Service boiler", quarterly, testStart)
	ghost := "ghost"

	_, err := env.tracker.CompleteMaintenanceTask(context.Background(), task.ID, model.CompletionData{
		CompletedDate:     testStart,
		ServiceProviderID: &ghost,
	})

	assert.ErrorIs(t, err, ErrProviderNotFound)
	assert.Empty(t, env.tracker.MaintenanceLogs())
}

func TestCompleteDefaultsToNow(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProperty(t, "Home")
	task := env.addTask(t, p.ID, "Check sump pump", model.Frequency{Value: 1, Unit: model.UnitYears}, testStart)

	c, err := env.tracker.CompleteMaintenanceTask(context.Background(), task.ID, model.CompletionData{})
	require.NoError(t, err)

	assert.Equal(t, testStart, c.Log.CompletedDate)
	assert.Equal(t, testStart.AddDate(1, 0, 0), c.Task.NextDue)
}

func TestRetryTaskUpdateRepairsStaleDueDate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.addProperty(t, "Home")
	task := env.addTask(t, p.ID, "Replace HVAC filter", quarterly, testStart)
	completed := testStart.AddDate(0, 0, 1)
	env.complete(t, task.ID, completed)

	// Put the task back the way it was, as if the update after logging failed.
	stale := *task
	require.NoError(t, env.stores.Tasks.Upsert(ctx, &stale))

	repaired, err := env.tracker.RetryTaskUpdate(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, completed.AddDate(0, 3, 0), repaired.NextDue)
	require.NotNil(t, repaired.LastCompleted)
	assert.Equal(t, completed, *repaired.LastCompleted)

	again, err := env.tracker.RetryTaskUpdate(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, repaired.NextDue, again.NextDue)
	assert.Len(t, env.tracker.GetMaintenanceLogsForTask(task.ID), 1, "retry never writes a log")
}

func TestRetryTaskUpdateWithoutLogs(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProperty(t, "Home")
	task := env.addTask(t, p.ID, "Clean dryer vent", quarterly, testStart)

	_, err := env.tracker.RetryTaskUpdate(context.Background(), task.ID)
	assert.ErrorIs(t, err, ErrNoCompletion)

	_, err = env.tracker.RetryTaskUpdate(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestUpdateTaskRearmsReminder(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProperty(t, "Home")
	task := env.addTask(t, p.ID, "Clean gutters", quarterly, testStart.AddDate(0, 0, 10))

	moved := testStart.AddDate(0, 1, 0)
	task.NextDue = moved
	updated, err := env.tracker.UpdateMaintenanceTask(context.Background(), *task)
	require.NoError(t, err)

	assert.Equal(t, moved, updated.NextDue)
	assert.Equal(t, task.CreatedAt, updated.CreatedAt)
	n, ok := env.reminders.get(model.NotifKindTaskDue, task.ID)
	require.True(t, ok)
	assert.Equal(t, moved.Add(-DueSoonWindow), n.FireAt)
}

func TestUpdateTaskRequiresProperty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.addProperty(t, "Home")
	task := env.addTask(t, p.ID, "Clean gutters", quarterly, testStart)

	moved := *task
	moved.PropertyID = "ghost"
	_, err := env.tracker.UpdateMaintenanceTask(ctx, moved)
	assert.ErrorIs(t, err, ErrPropertyNotFound)

	stored, err := env.stores.Tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, p.ID, stored.PropertyID)

	_, err = env.tracker.UpdateMaintenanceTask(ctx, model.MaintenanceTask{
		ID:         "new",
		PropertyID: "nope",
		Title:      "Flush water heater",
		Category:   model.CategoryPlumbing,
		Frequency:  quarterly,
		NextDue:    testStart,
	})
	assert.ErrorIs(t, err, ErrPropertyNotFound)
	_, ok := env.tracker.Task("new")
	assert.False(t, ok)

	require.NoError(t, env.tracker.DeleteProperty(ctx, p.ID))
	all, err := env.stores.Tasks.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUpdateOverdueTaskDoesNotRepeatReminder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.addProperty(t, "Home")
	task := env.addTask(t, p.ID, "Replace furnace filter", quarterly, testStart.AddDate(0, 0, -5))
	require.Equal(t, 1, env.reminders.scheduleCount())

	for i := range 3 {
		task.Description = fmt.Sprintf("edit %d", i)
		_, err := env.tracker.UpdateMaintenanceTask(ctx, *task)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, env.reminders.scheduleCount())

	task.NextDue = testStart.AddDate(0, 1, 0)
	_, err := env.tracker.UpdateMaintenanceTask(ctx, *task)
	require.NoError(t, err)
	assert.Equal(t, 2, env.reminders.scheduleCount())

	// Still ahead of its reminder time, so a text edit refreshes the reminder.
	task.Title = "Replace furnace filter (MERV 11)"
	_, err = env.tracker.UpdateMaintenanceTask(ctx, *task)
	require.NoError(t, err)
	assert.Equal(t, 3, env.reminders.scheduleCount())
	n, ok := env.reminders.get(model.NotifKindTaskDue, task.ID)
	require.True(t, ok)
	assert.Contains(t, n.Body, "MERV 11")
}

func TestDeleteTaskRemovesLogsAndReminder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.addProperty(t, "Home")
	task := env.addTask(t, p.ID, "Clean gutters", quarterly, testStart)
	other := env.addTask(t, p.ID, "Test smoke alarms", quarterly, testStart)
	env.complete(t, task.ID, testStart)
	env.complete(t, other.ID, testStart)

	require.NoError(t, env.tracker.DeleteMaintenanceTask(ctx, task.ID))

	_, ok := env.tracker.Task(task.ID)
	assert.False(t, ok)
	assert.Empty(t, env.tracker.GetMaintenanceLogsForTask(task.ID))
	_, ok = env.reminders.get(model.NotifKindTaskDue, task.ID)
	assert.False(t, ok)

	assert.Len(t, env.tracker.GetMaintenanceLogsForTask(other.ID), 1, "other tasks keep their logs")
	require.NoError(t, env.tracker.DeleteMaintenanceTask(ctx, task.ID), "deleting twice succeeds")
}

func TestDeletePropertyCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	home := env.addProperty(t, "Home")
	cabin := env.addProperty(t, "Cabin")
	filter := env.addTask(t, home.ID, "Replace HVAC filter", quarterly, testStart)
	gutters := env.addTask(t, home.ID, "Clean gutters", quarterly, testStart)
	kept := env.addTask(t, cabin.ID, "Drain pipes", quarterly, testStart)
	env.complete(t, filter.ID, testStart)
	env.complete(t, gutters.ID, testStart)
	env.complete(t, kept.ID, testStart)
	fridge := env.addWarranty(t, home.ID, "Fridge", testStart.AddDate(2, 0, 0), "documents/receipt.pdf")
	env.addWarranty(t, cabin.ID, "Stove", testStart.AddDate(2, 0, 0))

	require.NoError(t, env.tracker.DeleteProperty(ctx, home.ID))

	_, ok := env.tracker.Property(home.ID)
	assert.False(t, ok)
	assert.Empty(t, env.tracker.TasksForProperty(home.ID))
	assert.Empty(t, env.tracker.WarrantiesForProperty(home.ID))
	assert.Empty(t, env.tracker.GetMaintenanceLogsForTask(filter.ID))
	assert.Empty(t, env.tracker.GetMaintenanceLogsForTask(gutters.ID))

	for _, id := range []string{filter.ID, gutters.ID} {
		_, ok := env.reminders.get(model.NotifKindTaskDue, id)
		assert.False(t, ok, "reminder for %s outlived its task", id)
	}
	_, ok = env.reminders.get(model.NotifKindWarrantyExpiry, fridge.ID)
	assert.False(t, ok)
	assert.Contains(t, env.documents.deleted, "documents/receipt.pdf")

	// The store agrees with the mirror.
	tasks, err := env.stores.Tasks.ListByProperty(ctx, home.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	logs, err := env.stores.Logs.ListByProperty(ctx, home.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)

	assert.Len(t, env.tracker.TasksForProperty(cabin.ID), 1)
	assert.Len(t, env.tracker.WarrantiesForProperty(cabin.ID), 1)
	assert.Len(t, env.tracker.GetMaintenanceLogsForTask(kept.ID), 1)

	require.NoError(t, env.tracker.DeleteProperty(ctx, home.ID), "deleting twice succeeds")
	assert.Equal(t, websocket.ActionDeleted, env.hub.last().Action)
}

func TestDeletePropertyIncompleteCanBeRetried(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	home := env.addProperty(t, "Home")
	task := env.addTask(t, home.ID, "Replace HVAC filter", quarterly, testStart)
	env.complete(t, task.ID, testStart)
	env.addWarranty(t, home.ID, "Fridge", testStart.AddDate(2, 0, 0))

	env.reminders.fail(errors.New("scheduler offline"))
	err := env.tracker.DeleteProperty(ctx, home.ID)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCascadeDeleteIncomplete)
	var ce *CascadeError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.EntityProperty, ce.Entity)
	assert.Equal(t, home.ID, ce.ID)
	assert.Contains(t, err.Error(), "scheduler offline")

	// Nothing is orphaned: the property stays while it still owns records.
	_, ok := env.tracker.Property(home.ID)
	assert.True(t, ok)
	assert.Len(t, env.tracker.TasksForProperty(home.ID), 1)

	env.reminders.fail(nil)
	require.NoError(t, env.tracker.DeleteProperty(ctx, home.ID))
	_, ok = env.tracker.Property(home.ID)
	assert.False(t, ok)
	assert.Empty(t, env.tracker.Tasks())
	assert.Empty(t, env.tracker.Warranties())
	assert.Empty(t, env.tracker.MaintenanceLogs())
}

func TestDeletePropertyOnClosedStore(t *testing.T) {
	env := newTestEnv(t)
	home := env.addProperty(t, "Home")
	env.addTask(t, home.ID, "Replace HVAC filter", quarterly, testStart)
	env.stores.Close()

	err := env.tracker.DeleteProperty(context.Background(), home.ID)

	assert.ErrorIs(t, err, ErrCascadeDeleteIncomplete)
	assert.ErrorIs(t, err, store.ErrStorageUnavailable)
}

func TestAddOnClosedStoreIsUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.stores.Close()

	_, err := env.tracker.AddProperty(context.Background(), model.Property{Name: "Home"})

	assert.ErrorIs(t, err, store.ErrStorageUnavailable)
}

func TestClosedTrackerRejectsMutations(t *testing.T) {
	env := newTestEnv(t)
	env.addProperty(t, "Home")
	env.tracker.Close()

	_, err := env.tracker.AddProperty(context.Background(), model.Property{Name: "Cabin"})
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, env.tracker.Properties())
}

func TestWarrantyWarning(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProperty(t, "Home")

	far := testStart.AddDate(0, 6, 0)
	w := env.addWarranty(t, p.ID, "Dishwasher", far)
	n, ok := env.reminders.get(model.NotifKindWarrantyExpiry, w.ID)
	require.True(t, ok)
	assert.Equal(t, far.Add(-WarrantyWarning), n.FireAt)
	assert.Contains(t, n.Body, "Dishwasher")

	soon := env.addWarranty(t, p.ID, "Microwave", testStart.AddDate(0, 0, 10))
	_, ok = env.reminders.get(model.NotifKindWarrantyExpiry, soon.ID)
	assert.False(t, ok, "warning date already passed")

	// Pulling the expiry in past the warning window drops the warning.
	w.ExpiryDate = testStart.AddDate(0, 0, 20)
	_, err := env.tracker.UpdateWarranty(context.Background(), *w)
	require.NoError(t, err)
	_, ok = env.reminders.get(model.NotifKindWarrantyExpiry, w.ID)
	assert.False(t, ok)
}

func TestUpdateWarrantyRequiresProperty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.addProperty(t, "Home")
	w := env.addWarranty(t, p.ID, "Dishwasher", testStart.AddDate(1, 0, 0))

	moved := *w
	moved.PropertyID = "ghost"
	_, err := env.tracker.UpdateWarranty(ctx, moved)
	assert.ErrorIs(t, err, ErrPropertyNotFound)

	orphan := *w
	orphan.ID = "w"
	orphan.PropertyID = "nope"
	_, err = env.tracker.UpdateWarranty(ctx, orphan)
	assert.ErrorIs(t, err, ErrPropertyNotFound)

	require.NoError(t, env.tracker.DeleteProperty(ctx, p.ID))
	all, err := env.stores.Warranties.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestWarrantiesSortedByExpiry(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProperty(t, "Home")
	env.addWarranty(t, p.ID, "Roof", testStart.AddDate(10, 0, 0))
	env.addWarranty(t, p.ID, "Washer", testStart.AddDate(1, 0, 0))

	ws := env.tracker.Warranties()
	require.Len(t, ws, 2)
	assert.Equal(t, "Washer", ws[0].ItemName)
}

func TestDeleteWarranty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.addProperty(t, "Home")
	w := env.addWarranty(t, p.ID, "Dishwasher", testStart.AddDate(2, 0, 0), "documents/card.jpg")

	require.NoError(t, env.tracker.DeleteWarranty(ctx, w.ID))

	assert.Empty(t, env.tracker.Warranties())
	_, ok := env.reminders.get(model.NotifKindWarrantyExpiry, w.ID)
	assert.False(t, ok)
	assert.Equal(t, []string{"documents/card.jpg"}, env.documents.deleted)
	require.NoError(t, env.tracker.DeleteWarranty(ctx, w.ID))
}

func TestServiceProviderCRUD(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	plumber, err := env.tracker.AddServiceProvider(ctx, model.ServiceProvider{
		Name:       "Pipes & Co",
		Categories: []model.Category{model.CategoryPlumbing},
		Rating:     4,
	})
	require.NoError(t, err)
	_, err = env.tracker.AddServiceProvider(ctx, model.ServiceProvider{
		Name:       "Acme HVAC",
		Categories: []model.Category{model.CategoryHVAC},
	})
	require.NoError(t, err)

	names := []string{}
	for _, p := range env.tracker.ServiceProviders() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Acme HVAC", "Pipes & Co"}, names)

	plumber.Rating = 5
	_, err = env.tracker.UpdateServiceProvider(ctx, *plumber)
	require.NoError(t, err)
	got, ok := env.tracker.ServiceProvider(plumber.ID)
	require.True(t, ok)
	assert.Equal(t, 5, got.Rating)

	require.NoError(t, env.tracker.DeleteServiceProvider(ctx, plumber.ID))
	assert.Len(t, env.tracker.ServiceProviders(), 1)
}

func TestCompleteWithProvider(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.addProperty(t, "Home")
	task := env.addTask(t, p.ID, "Service boiler", quarterly, testStart)
	pro, err := env.tracker.AddServiceProvider(ctx, model.ServiceProvider{
		Name:       "Acme HVAC",
		Categories: []model.Category{model.CategoryHVAC},
	})
	require.NoError(t, err)

	c, err := env.tracker.CompleteMaintenanceTask(ctx, task.ID, model.CompletionData{
		CompletedDate:     testStart,
		ServiceProviderID: &pro.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, c.Log.ServiceProviderID)
	assert.Equal(t, pro.ID, *c.Log.ServiceProviderID)

	// Provider deletion does not touch the log.
	require.NoError(t, env.tracker.DeleteServiceProvider(ctx, pro.ID))
	assert.Len(t, env.tracker.GetMaintenanceLogsForTask(task.ID), 1)
}

func TestDeleteMaintenanceLog(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProperty(t, "Home")
	task := env.addTask(t, p.ID, "Clean gutters", quarterly, testStart)
	c := env.complete(t, task.ID, testStart)

	require.NoError(t, env.tracker.DeleteMaintenanceLog(context.Background(), c.Log.ID))
	assert.Empty(t, env.tracker.GetMaintenanceLogsForTask(task.ID))
	got, _ := env.tracker.Task(task.ID)
	assert.Equal(t, c.Task.NextDue, got.NextDue, "task is left alone")
	require.NoError(t, env.tracker.DeleteMaintenanceLog(context.Background(), c.Log.ID))
}

func TestMirrorReadsReturnCopies(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProperty(t, "Home")
	env.addWarranty(t, p.ID, "Fridge", testStart.AddDate(1, 0, 0), "documents/a.pdf")

	ws := env.tracker.Warranties()
	ws[0].ItemName = "changed"
	ws[0].Documents[0] = "changed"

	again := env.tracker.Warranties()
	assert.Equal(t, "Fridge", again[0].ItemName)
	assert.Equal(t, "documents/a.pdf", again[0].Documents[0])
}

func TestTrialLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s, err := env.tracker.TrialStatus(ctx)
	require.NoError(t, err)
	assert.True(t, s.IsActive)
	assert.Equal(t, 14, s.DaysLeft)
	assert.Equal(t, testStart, s.StartDate)
	assert.Equal(t, testStart.AddDate(0, 0, 14), s.EndDate)

	env.clock.Advance(14 * 24 * time.Hour)
	s, err = env.tracker.TrialStatus(ctx)
	require.NoError(t, err)
	assert.True(t, s.IsActive, "still active at the exact end instant")
	assert.Equal(t, 0, s.DaysLeft)

	env.clock.Advance(time.Millisecond)
	s, err = env.tracker.TrialStatus(ctx)
	require.NoError(t, err)
	assert.False(t, s.IsActive)
	assert.Equal(t, 0, s.DaysLeft)

	// A second Init does not restart the trial.
	require.NoError(t, env.tracker.Init(ctx))
	s, err = env.tracker.TrialStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, testStart, s.StartDate)
}

func TestUpdateTrialInfoRefreshesCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	info := model.TrialInfo{
		StartDate: testStart.AddDate(0, -1, 0),
		EndDate:   testStart.AddDate(0, 0, -1),
		IsActive:  true,
	}
	s, err := env.tracker.UpdateTrialInfo(ctx, info)
	require.NoError(t, err)
	assert.False(t, s.IsActive)

	stored, err := env.stores.Trial.Get(ctx)
	require.NoError(t, err)
	assert.False(t, stored.IsActive, "cache follows the derived value")
	assert.Equal(t, websocket.EntityTrial, env.hub.last().Entity)
}

func TestSyncSubscription(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	periodEnd := testStart.AddDate(0, 1, 0)
	env.payments.status = billing.Status{Active: true, SubscriptionID: "sub_1", CurrentPeriodEnd: &periodEnd}

	s, err := env.tracker.SyncSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, s.IsPro)
	assert.True(t, s.IsActive)
	assert.Equal(t, 0, s.DaysLeft)
	assert.Equal(t, periodEnd, s.EndDate)

	s, err = env.tracker.CancelSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"user-1"}, env.payments.cancelled)
	assert.True(t, s.IsPro)
	assert.True(t, s.CancelAtPeriodEnd)

	// The subscription ends: pro is cleared, the period end stays.
	s, err = env.tracker.ApplySubscription(ctx, billing.Status{Active: false})
	require.NoError(t, err)
	assert.False(t, s.IsPro)
	assert.False(t, s.CancelAtPeriodEnd)
	assert.Equal(t, periodEnd, s.EndDate)
	assert.True(t, s.IsActive)
}

func TestSyncSubscriptionProviderError(t *testing.T) {
	env := newTestEnv(t)
	env.payments.err = errors.New("stripe down")

	_, err := env.tracker.SyncSubscription(context.Background(), "user-1")
	assert.ErrorContains(t, err, "stripe down")

	s, err := env.tracker.TrialStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, s.IsPro, "failed sync leaves the record alone")
}

func TestOptionalIntegrationsDisabled(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Payments = nil
		d.Documents = nil
		d.OCR = nil
	})
	ctx := context.Background()

	_, err := env.tracker.CreateCheckoutSession(ctx, "user-1")
	assert.ErrorIs(t, err, ErrBillingDisabled)
	_, err = env.tracker.SyncSubscription(ctx, "user-1")
	assert.ErrorIs(t, err, ErrBillingDisabled)
	_, err = env.tracker.AttachDocument(ctx, "a.pdf", "application/pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrDocumentsDisabled)
	_, err = env.tracker.DocumentURL(ctx, "documents/a.pdf")
	assert.ErrorIs(t, err, ErrDocumentsDisabled)
	_, err = env.tracker.DraftWarrantyFromDocument(ctx, "a.jpg", []byte("x"))
	assert.ErrorIs(t, err, ErrOCRDisabled)
}

func TestAttachDocument(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	key, err := env.tracker.AttachDocument(ctx, "receipt.pdf", "application/pdf", strings.NewReader("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), env.documents.objects[key])

	url, err := env.tracker.DocumentURL(ctx, key)
	require.NoError(t, err)
	assert.Contains(t, url, key)
}

func TestDraftWarrantyFromDocument(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.OCR = fakeExtractor{result: &ocr.Result{
			ItemName:     " Dishwasher ",
			Manufacturer: "Bosch",
			PurchaseDate: "2024-01-15",
			ExpiryDate:   "not a date",
		}}
	})

	d, err := env.tracker.DraftWarrantyFromDocument(context.Background(), "receipt.jpg", []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "Dishwasher", d.ItemName)
	assert.Equal(t, "Bosch", d.Manufacturer)
	require.NotNil(t, d.PurchaseDate)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), *d.PurchaseDate)
	assert.Nil(t, d.ExpiryDate)
}

func TestTaskStatus(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		due   time.Time
		state TaskState
		days  int
	}{
		{"yesterday", now.AddDate(0, 0, -1), StateOverdue, -1},
		{"an hour ago", now.Add(-time.Hour), StateOverdue, 0},
		{"later today", now.Add(time.Hour), StateDueSoon, 0},
		{"two days out", now.Add(DueSoonWindow), StateDueSoon, 2},
		{"next week", now.AddDate(0, 0, 7), StateUpcoming, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StatusOf(model.MaintenanceTask{NextDue: tt.due}, now)
			assert.Equal(t, tt.state, got.State)
			assert.Equal(t, tt.days, got.DaysUntilDue)
		})
	}
}
