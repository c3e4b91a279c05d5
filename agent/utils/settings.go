package utils

import (
	"time"
)

const HTTPReqTimeout = 1 * time.Minute

var Settings = &Hub{
	timeout:             HTTPReqTimeout,
	maxRetryCount:       4,
	retryDelay:          10 * time.Second,
	maxInFlight:         16,
	mailboxTTL:          7 * 24 * time.Hour,
	maintenanceInterval: time.Hour,
	plaintextFallback:   true,
}

// Hub is the one settings object of the whole process. It's filled once at
// startup from the CLI/env layer and read-only after that.
type Hub struct {
	hostAddr    string        // host name of the server seen from internet
	versionInfo string        // version number etc. in free format as a string
	timeout     time.Duration // timeout setting for http requests and connections

	maxRetryCount int           // delivery attempts before a message goes FAILED
	retryDelay    time.Duration // base delay between delivery retries
	maxInFlight   int           // bound for concurrent delivery attempts

	mailboxTTL          time.Duration // store-and-forward entry lifetime
	maintenanceInterval time.Duration // how often the mailbox sweeps expired mail

	// plaintextFallback keeps failed-decrypt bytes as literal plaintext
	// instead of rejecting them. Needed for test messages, switchable off
	// for hardened deployments.
	plaintextFallback bool
}

func (h *Hub) Timeout() time.Duration {
	return h.timeout
}

func (h *Hub) SetTimeout(to time.Duration) {
	h.timeout = to
}

func (h *Hub) HostAddr() string {
	return h.hostAddr
}

func (h *Hub) SetHostAddr(ipName string) {
	h.hostAddr = ipName
}

func (h *Hub) VersionInfo() string {
	return h.versionInfo
}

func (h *Hub) SetVersionInfo(info string) {
	h.versionInfo = info
}

func (h *Hub) MaxRetryCount() int {
	return h.maxRetryCount
}

func (h *Hub) SetMaxRetryCount(n int) {
	h.maxRetryCount = n
}

func (h *Hub) RetryDelay() time.Duration {
	return h.retryDelay
}

func (h *Hub) SetRetryDelay(d time.Duration) {
	h.retryDelay = d
}

func (h *Hub) MaxInFlight() int {
	return h.maxInFlight
}

func (h *Hub) SetMaxInFlight(n int) {
	h.maxInFlight = n
}

func (h *Hub) MailboxTTL() time.Duration {
	return h.mailboxTTL
}

func (h *Hub) SetMailboxTTL(ttl time.Duration) {
	h.mailboxTTL = ttl
}

func (h *Hub) MaintenanceInterval() time.Duration {
	return h.maintenanceInterval
}

func (h *Hub) SetMaintenanceInterval(d time.Duration) {
	h.maintenanceInterval = d
}

func (h *Hub) PlaintextFallback() bool {
	return h.plaintextFallback
}

func (h *Hub) SetPlaintextFallback(yes bool) {
	h.plaintextFallback = yes
}
