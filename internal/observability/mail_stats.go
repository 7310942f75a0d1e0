package observability

import (
	"sync"
	"time"
)

// MailStats are the mail worker's in-process counters, served on its /stats endpoint.
// Jobs are attempted once, so every claimed job ends as exactly one of sent or failed.
type MailStats struct {
	mu     sync.Mutex
	byType map[string]*mailCounts
}

type mailCounts struct {
	claimed uint64
	sent    uint64
	failed  uint64
	total   time.Duration
	max     time.Duration
}

func NewMailStats() *MailStats {
	return &MailStats{byType: make(map[string]*mailCounts)}
}

func (m *MailStats) counts(jobType string) *mailCounts {
	c, ok := m.byType[jobType]
	if !ok {
		c = &mailCounts{}
		m.byType[jobType] = c
	}
	return c
}

func (m *MailStats) Claimed(jobType string) {
	m.mu.Lock()
	m.counts(jobType).claimed++
	m.mu.Unlock()
}

// Finished records the outcome of the single attempt at a claimed job.
func (m *MailStats) Finished(jobType string, took time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.counts(jobType)
	if err != nil {
		c.failed++
	} else {
		c.sent++
	}

	c.total += took
	if took > c.max {
		c.max = took
	}
}

type MailTypeStats struct {
	Claimed         uint64        `json:"claimed"`
	Sent            uint64        `json:"sent"`
	Failed          uint64        `json:"failed"`
	AverageDuration time.Duration `json:"averageDurationNs"`
	MaxDuration     time.Duration `json:"maxDurationNs"`
}

type MailStatsSnapshot struct {
	MailTypeStats
	ByType map[string]MailTypeStats `json:"byType"`
}

func (c *mailCounts) view() MailTypeStats {
	s := MailTypeStats{Claimed: c.claimed, Sent: c.sent, Failed: c.failed, MaxDuration: c.max}
	if n := c.sent + c.failed; n > 0 {
		s.AverageDuration = c.total / time.Duration(n)
	}
	return s
}

func (m *MailStats) Snapshot() MailStatsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all mailCounts
	out := MailStatsSnapshot{ByType: make(map[string]MailTypeStats, len(m.byType))}

	for t, c := range m.byType {
		out.ByType[t] = c.view()

		all.claimed += c.claimed
		all.sent += c.sent
		all.failed += c.failed
		all.total += c.total
		if c.max > all.max {
			all.max = c.max
		}
	}

	out.MailTypeStats = all.view()
	return out
}
