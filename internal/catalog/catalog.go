package catalog

import (
	"math/rand"
	"sync"
	"time"
)

// Trigger family names shared by the catalog and the trigger modules.
const (
	TriggerInactivity          = "inactivity"
	TriggerMilestonePercent    = "milestone-percent"
	TriggerMilestoneMoney      = "milestone-money"
	TriggerDailyAchievement    = "daily-achievement"
	TriggerWeeklySummary       = "weekly-summary"
	TriggerFirstPuffFreeDay    = "first-puff-free-day"
	TriggerGoalCompleted       = "goal-completed"
	TriggerVerification        = "verification-reminder"
	TriggerVerificationExpired = "verification-expired"
	TriggerEmailChange         = "email-change-reminder"
)

// Severity buckets used to select a message pool within a trigger family.
type Severity string

const (
	SeverityGentle      Severity = "gentle"
	SeverityFirm        Severity = "firm"
	SeverityUrgent      Severity = "urgent"
	SeverityCelebration Severity = "celebration"
)

// Message is one piece of notification copy. Bodies may carry fmt verbs that
// the trigger module fills in with business values.
type Message struct {
	Title string
	Body  string
}

type key struct {
	trigger  string
	severity Severity
}

// Catalog hands out randomized copy per (trigger, severity) so repeated
// notifications do not read identically. State machines stay free of copywriting.
type Catalog struct {
	mu    sync.Mutex
	rng   *rand.Rand
	pools map[key][]Message
}

// Option customises the Catalog.
type Option func(*Catalog)

// WithRandSource injects a seeded random source, primarily for tests.
func WithRandSource(src rand.Source) Option {
	return func(c *Catalog) {
		if src != nil {
			c.rng = rand.New(src)
		}
	}
}

// New constructs the catalog with the built-in message pools.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		pools: defaultPools(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Pick returns one message for the supplied trigger and severity. Unknown
// combinations fall back to a generic nudge rather than empty copy.
func (c *Catalog) Pick(trigger string, severity Severity) Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	pool, ok := c.pools[key{trigger: trigger, severity: severity}]
	if !ok || len(pool) == 0 {
		return Message{Title: "Puffless", Body: "Keep going, every hour counts."}
	}

	return pool[c.rng.Intn(len(pool))]
}

func defaultPools() map[key][]Message {
	return map[key][]Message{
		{TriggerInactivity, SeverityGentle}: {
			{Title: "Still with us?", Body: "It has been a day since you checked in. A quick look keeps your streak honest."},
			{Title: "Your plan misses you", Body: "Log how today went, it only takes a moment."},
			{Title: "One tap check-in", Body: "Open the app and see how far you have come since yesterday."},
		},
		{TriggerInactivity, SeverityFirm}: {
			{Title: "Two days offline", Body: "Cravings love silence. Check in and keep your plan on track."},
			{Title: "Do not drift", Body: "It has been 48 hours. Your progress chart is waiting for today's entry."},
		},
		{TriggerInactivity, SeverityUrgent}: {
			{Title: "Three days away", Body: "Your quit plan works best when you do. Come back and pick up where you left off."},
			{Title: "We saved your streak", Body: "72 hours without a check-in. One tap brings your plan back to life."},
		},
		{TriggerMilestonePercent, SeverityCelebration}: {
			{Title: "Milestone reached!", Body: "You are %d%% of the way through your plan. Keep it up!"},
			{Title: "%d%% done", Body: "Another chunk of your quit plan is behind you. Breathe it in."},
			{Title: "Progress unlocked", Body: "That is %d%% of your plan complete. Your lungs noticed."},
		},
		{TriggerMilestoneMoney, SeverityCelebration}: {
			{Title: "Money saved!", Body: "You have kept %s %d in your pocket since you started."},
			{Title: "%s %d and counting", Body: "That is real money you did not burn. Treat yourself to something better."},
			{Title: "Savings milestone", Body: "Not vaping just paid you %s %d back."},
		},
		{TriggerDailyAchievement, SeverityGentle}: {
			{Title: "Today's win", Body: "Take ten seconds to log today. Small wins stack up."},
			{Title: "Evening check-in", Body: "How did today go? Record it while it is fresh."},
		},
		{TriggerWeeklySummary, SeverityGentle}: {
			{Title: "Your week in review", Body: "Seven days of data are in. See how this week compared to the last."},
			{Title: "Weekly summary ready", Body: "Open the app for your week's puff trend and savings."},
		},
		{TriggerFirstPuffFreeDay, SeverityCelebration}: {
			{Title: "First clean day!", Body: "A full day without a single puff. This is how it starts."},
			{Title: "Day zero, done", Body: "You just logged your first puff-free day. Remember this feeling."},
		},
		{TriggerGoalCompleted, SeverityCelebration}: {
			{Title: "Plan complete!", Body: "You made it to the end of your quit plan. Come see your final numbers."},
			{Title: "You did it", Body: "Your goal date is here. Open the app to close out your plan."},
		},
		{TriggerVerification, SeverityGentle}: {
			{Title: "Verify your email", Body: "Confirm %s to keep your progress backed up."},
			{Title: "One step left", Body: "Your account still needs email verification. It takes a minute."},
		},
		{TriggerVerification, SeverityUrgent}: {
			{Title: "Verification required", Body: "Your account has been unverified for a week. Verify %s to keep using the app."},
		},
		{TriggerVerificationExpired, SeverityFirm}: {
			{Title: "Email change expired", Body: "The change to %s was not confirmed in time. Your old address stays active."},
		},
		{TriggerEmailChange, SeverityGentle}: {
			{Title: "Confirm your new email", Body: "Tap the link we sent to %s to finish switching addresses."},
			{Title: "Email change pending", Body: "Your new address %s is waiting for confirmation."},
		},
	}
}
