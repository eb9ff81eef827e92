package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/elevenses/internal/model"
	"github.com/dukerupert/elevenses/internal/store"
)

const defaultReminderHour = 16

// Scheduler sends the daily dinner reminder for each household with push
// subscriptions. One-off notifications (plan ready) are sent through it too
// so expiry handling stays in one place.
type Scheduler struct {
	mu       sync.RWMutex
	service  *Service
	push     *store.PushStore
	plans    *store.MealPlanStore
	settings *store.SettingsStore
	logger   *slog.Logger
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScheduler(svc *Service, pushStore *store.PushStore, planStore *store.MealPlanStore, settingsStore *store.SettingsStore, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		service:  svc,
		push:     pushStore,
		plans:    planStore,
		settings: settingsStore,
		logger:   logger.With("component", "push"),
		interval: 60 * time.Second,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick() {
	householdIDs, err := s.push.SubscribedHouseholds()
	if err != nil {
		s.logger.Error("list subscribed households", "error", err)
		return
	}

	now := time.Now()
	for _, hid := range householdIDs {
		s.checkDinnerReminder(hid, now)
	}
}

// reminderHour returns the household's configured dinner reminder hour.
func (s *Scheduler) reminderHour(householdID int64) int {
	v, err := s.settings.Get(householdID, "dinner_reminder_hour")
	if err != nil {
		return defaultReminderHour
	}
	hour, err := strconv.Atoi(v)
	if err != nil || hour < 0 || hour > 23 {
		return defaultReminderHour
	}
	return hour
}

// checkDinnerReminder sends tonight's mains once per day at the household's
// reminder hour. Days without a plan, or plan days without mains, send
// nothing.
func (s *Scheduler) checkDinnerReminder(householdID int64, now time.Time) {
	if now.Minute() != 0 || now.Hour() != s.reminderHour(householdID) {
		return
	}

	refID := fmt.Sprintf("dinner-%s", now.Format("2006-01-02"))
	sent, err := s.push.WasSent(householdID, model.NotifTypeDinnerReminder, refID, 0)
	if err != nil || sent {
		return
	}

	day, weekStart := planDay(now)
	plan, err := s.plans.GetByKey(householdID, weekStart, 0)
	if err != nil {
		s.logger.Error("load plan for reminder", "error", err)
		return
	}
	if plan == nil {
		return
	}

	items, err := s.plans.ListItems(plan.ID)
	if err != nil {
		s.logger.Error("load plan items for reminder", "error", err)
		return
	}

	var mains []string
	for _, it := range items {
		if it.Day != day || it.MealType != model.MealTypeMain {
			continue
		}
		name := it.RecipeName
		if name == "" {
			name = it.Notes
		}
		if name != "" {
			mains = append(mains, name)
		}
	}
	if len(mains) == 0 {
		return
	}

	payload := Payload{
		Title: "Tonight's Dinner",
		Body:  strings.Join(mains, " and "),
		URL:   "/plan",
		Tag:   "dinner-reminder",
	}
	s.sendToHousehold(householdID, 0, model.NotifTypeDinnerReminder, payload)
	s.push.RecordSent(householdID, model.NotifTypeDinnerReminder, refID, 0)
}

// SendPlanReady notifies household members that a week's plan was generated.
// Called from the meal plan handler, not the scheduler loop; the generating
// user is excluded.
func (s *Scheduler) SendPlanReady(householdID, excludeUserID int64, weekStart string) {
	payload := Payload{
		Title: "Meal Plan Ready",
		Body:  fmt.Sprintf("The plan for the week of %s is ready", weekStart),
		URL:   "/plan",
		Tag:   "plan-ready",
	}
	s.sendToHousehold(householdID, excludeUserID, model.NotifTypePlanReady, payload)
}

func (s *Scheduler) sendToHousehold(householdID, excludeUserID int64, notifType string, payload Payload) {
	subs, err := s.push.ListByHousehold(householdID)
	if err != nil {
		s.logger.Error("list subscriptions", "error", err)
		return
	}

	for _, sub := range subs {
		if excludeUserID != 0 && sub.UserID == excludeUserID {
			continue
		}
		enabled, _ := s.push.IsPreferenceEnabled(sub.UserID, householdID, notifType)
		if !enabled {
			continue
		}

		if err := s.service.Send(&sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				s.push.DeleteByEndpoint(sub.Endpoint)
			} else {
				s.logger.Error("send notification", "type", notifType, "error", err)
			}
		}
	}
}

// planDay maps a timestamp to its plan day name and the ISO Monday of its
// week, both in the server's local time.
func planDay(now time.Time) (day, weekStart string) {
	idx := (int(now.Weekday()) + 6) % 7
	return model.WeekDays[idx], now.AddDate(0, 0, -idx).Format("2006-01-02")
}
