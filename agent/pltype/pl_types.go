package pltype

// Protocol namespace constants
const (
	Aries = "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec" // namespace for all Aries v1 protocols
)

// Routing protocol constants. The forward message is the envelope we build
// around an encrypted payload for every mediator on the route.
const (
	ProtocolRouting = "routing"
	HandlerForward  = "forward"
	Routing         = Aries + "/" + ProtocolRouting
	RoutingForward  = Routing + "/1.0/" + HandlerForward
)

// Notification protocol constants
const (
	ProtocolNotification      = "notification"
	HandlerProblemReport      = "problem-report"
	Notification              = Aries + "/" + ProtocolNotification
	NotificationProblemReport = Notification + "/1.0/" + HandlerProblemReport
)

// Trust Ping protocol constants
const (
	ProtocolTrustPing      = "trust_ping"
	HandlerPing            = "ping"
	HandlerPingResponse    = "ping_response"
	TrustPing              = Aries + "/" + ProtocolTrustPing
	TrustPingPing          = TrustPing + "/1.0/" + HandlerPing
	TrustPingPingResponse  = TrustPing + "/1.0/" + HandlerPingResponse
)

// Wire level field and decorator names. V1 messages declare their type in
// @type, V2 messages carry a plain type field. The absence of both marks an
// encrypted envelope.
const (
	FieldTypeV1   = "@type"
	FieldIDV1     = "@id"
	FieldTypeV2   = "type"
	FieldIDV2     = "id"
	FieldThidV2   = "thid"
	FieldPthidV2  = "pthid"
	FieldReturnV2 = "return_route"

	DecoratorThread    = "~thread"
	DecoratorTransport = "~transport"
)

// Media types used on the wire.
const (
	MediaTypeEncryptedEnvelope = "application/ssi-agent-wire"
	MediaTypeProfileV1         = "didcomm/aip2;env=rfc19"
)
