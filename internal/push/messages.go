package push

import (
	"github.com/iltoga/BusinessSuite-sub003/internal/api"
	"github.com/iltoga/BusinessSuite-sub003/internal/baselib/actor"
)

// RouterRequest is the union type for all delivery router requests.
type RouterRequest interface {
	actor.Message
	isRouterRequest()
}

// RouterResponse is the union type for all delivery router responses.
type RouterResponse interface {
	isRouterResponse()
}

// Ensure all request types implement RouterRequest.
func (ConfigureMsg) isRouterRequest()    {}
func (SetAuthTokenMsg) isRouterRequest() {}
func (DeliverMsg) isRouterRequest()      {}
func (ClickedMsg) isRouterRequest()      {}
func (DismissedMsg) isRouterRequest()    {}
func (StatusMsg) isRouterRequest()       {}

// Ensure all response types implement RouterResponse.
func (ConfigureResponse) isRouterResponse()    {}
func (SetAuthTokenResponse) isRouterResponse() {}
func (DeliverResponse) isRouterResponse()      {}
func (ClickedResponse) isRouterResponse()      {}
func (DismissedResponse) isRouterResponse()    {}
func (StatusResponse) isRouterResponse()       {}

// ProviderConfig is the push provider handshake the router must receive
// before it processes any delivery.
type ProviderConfig struct {
	ProjectID string `json:"projectId"`
	AppID     string `json:"appId"`
	APIKey    string `json:"apiKey"`
	SenderID  string `json:"messagingSenderId"`
}

// ConfigureMsg carries the provider config handshake. The first one moves
// the router to its initialized state; repeats are idempotent.
type ConfigureMsg struct {
	actor.BaseMessage

	Config ProviderConfig
}

// MessageType implements actor.Message.
func (ConfigureMsg) MessageType() string { return "ConfigureMsg" }

// ConfigureResponse is the response to ConfigureMsg.
type ConfigureResponse struct {
	// AlreadyInitialized is true when the router had been configured
	// before this message.
	AlreadyInitialized bool
}

// SetAuthTokenMsg updates the bearer token used for acknowledgments.
type SetAuthTokenMsg struct {
	actor.BaseMessage

	Token string
}

// MessageType implements actor.Message.
func (SetAuthTokenMsg) MessageType() string { return "SetAuthTokenMsg" }

// SetAuthTokenResponse is the response to SetAuthTokenMsg.
type SetAuthTokenResponse struct{}

// DeliverMsg routes one provider payload.
type DeliverMsg struct {
	actor.BaseMessage

	Payload Payload
}

// MessageType implements actor.Message.
func (DeliverMsg) MessageType() string { return "DeliverMsg" }

// DeliverResponse is the response to DeliverMsg.
type DeliverResponse struct {
	// Dropped is true when the payload arrived before the provider
	// handshake and was discarded.
	Dropped bool

	// Channel is the delivery channel the payload took.
	Channel api.Channel

	// Surfaces is the number of visible surfaces that received the
	// payload directly. Zero when an OS notification was raised.
	Surfaces int

	// Tag is the OS notification tag, when one was raised.
	Tag string
}

// ClickedMsg reports a click on a previously raised OS notification.
type ClickedMsg struct {
	actor.BaseMessage

	// Tag identifies the notification that was clicked.
	Tag string
}

// MessageType implements actor.Message.
func (ClickedMsg) MessageType() string { return "ClickedMsg" }

// ClickedResponse is the response to ClickedMsg.
type ClickedResponse struct {
	// Known is false when the tag does not match a live notification,
	// in which case the click was a no-op.
	Known bool

	// Navigated is true when an existing surface accepted the
	// click-through link.
	Navigated bool

	// Forwarded is the number of surfaces the original payload was
	// re-delivered to.
	Forwarded int
}

// DismissedMsg reports that a raised OS notification was dismissed without
// a click.
type DismissedMsg struct {
	actor.BaseMessage

	Tag string
}

// MessageType implements actor.Message.
func (DismissedMsg) MessageType() string { return "DismissedMsg" }

// DismissedResponse is the response to DismissedMsg.
type DismissedResponse struct {
	Known bool
}

// StatusMsg asks for the router's counters.
type StatusMsg struct {
	actor.BaseMessage
}

// MessageType implements actor.Message.
func (StatusMsg) MessageType() string { return "StatusMsg" }

// StatusResponse is the response to StatusMsg.
type StatusResponse struct {
	Initialized    bool
	DroppedPreInit uint64
	DeliveredInApp uint64
	Notified       uint64
	LiveTags       int
}
