/*
Package mailbox is the in-memory store-and-forward queue for recipients that
are offline. Messages are indexed under every key they could be collected
with, the pickup protocol pops them per key in FIFO order, and old mail is
swept on a schedule or opportunistically by pickup reads.
*/
package mailbox

import (
	"sync"
	"time"

	"github.com/findy-network/findy-courier/agent/didcomm"
	"github.com/go-co-op/gocron"
	"github.com/golang/glog"
)

// DefaultTTL is how long undelivered mail waits for pickup.
const DefaultTTL = 7 * 24 * time.Hour

type entry struct {
	msg *didcomm.Outbound
	at  time.Time
}

type Queue struct {
	lk    sync.Mutex
	byKey map[string][]entry
	ttl   time.Duration

	cron *gocron.Scheduler
}

func New() *Queue {
	return &Queue{
		byKey: make(map[string][]entry),
		ttl:   DefaultTTL,
	}
}

// SetTTL overrides the default entry lifetime.
func (q *Queue) SetTTL(ttl time.Duration) {
	q.lk.Lock()
	defer q.lk.Unlock()
	q.ttl = ttl
}

// AddMessage stores msg under every key it might be collected with: the
// recipient keys of its targets and its reply-to verkey.
func (q *Queue) AddMessage(msg *didcomm.Outbound) {
	keys := make(map[string]struct{})
	for _, t := range msg.AllTargets() {
		for _, k := range t.RecipientKeys {
			keys[k] = struct{}{}
		}
	}
	if msg.ReplyToVerKey != "" {
		keys[msg.ReplyToVerKey] = struct{}{}
	}
	if len(keys) == 0 {
		glog.Warningln("mailbox: message with no collectable keys, dropped")
		return
	}

	now := time.Now()
	q.lk.Lock()
	defer q.lk.Unlock()
	for k := range keys {
		q.byKey[k] = append(q.byKey[k], entry{msg: msg, at: now})
	}
	glog.V(4).Infof("mailbox: stored message under %d key(s)", len(keys))
}

// GetOneMessageForKey pops the oldest live message for key, nil when the
// mailbox has nothing for it.
func (q *Queue) GetOneMessageForKey(key string) *didcomm.Outbound {
	q.lk.Lock()
	defer q.lk.Unlock()

	q.expireKey(key, q.ttl)
	list := q.byKey[key]
	if len(list) == 0 {
		return nil
	}
	msg := list[0].msg
	if len(list) == 1 {
		delete(q.byKey, key)
	} else {
		q.byKey[key] = list[1:]
	}
	return msg
}

// HasMessageForKey tells if there is live mail for key.
func (q *Queue) HasMessageForKey(key string) bool {
	return q.MessageCountForKey(key) > 0
}

// MessageCountForKey returns how much live mail waits for key.
func (q *Queue) MessageCountForKey(key string) int {
	q.lk.Lock()
	defer q.lk.Unlock()

	q.expireKey(key, q.ttl)
	return len(q.byKey[key])
}

// ExpireMessages purges entries older than now-ttl across all keys.
func (q *Queue) ExpireMessages(ttl time.Duration) {
	q.lk.Lock()
	defer q.lk.Unlock()

	for key := range q.byKey {
		q.expireKey(key, ttl)
	}
}

// expireKey must run under the lock.
func (q *Queue) expireKey(key string, ttl time.Duration) {
	limit := time.Now().Add(-ttl)
	list := q.byKey[key]

	kept := list[:0]
	for _, e := range list {
		if e.at.After(limit) {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(q.byKey, key)
		return
	}
	q.byKey[key] = kept
}

// StartMaintenance schedules periodic TTL sweeps. Stop with
// StopMaintenance.
func (q *Queue) StartMaintenance(interval time.Duration) {
	if q.cron != nil {
		return
	}
	q.cron = gocron.NewScheduler(time.Now().Location())
	_, err := q.cron.Every(interval).Do(func() {
		glog.V(5).Infoln("mailbox: TTL sweep")
		q.ExpireMessages(q.currentTTL())
	})
	if err != nil {
		glog.Errorln("mailbox: cannot schedule maintenance:", err)
		return
	}
	q.cron.StartAsync()
}

func (q *Queue) StopMaintenance() {
	if q.cron != nil {
		q.cron.Stop()
		q.cron = nil
	}
}

func (q *Queue) currentTTL() time.Duration {
	q.lk.Lock()
	defer q.lk.Unlock()
	return q.ttl
}
