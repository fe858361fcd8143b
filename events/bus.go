// Package events provides the notification surface between the session
// layer and the presentation layer. Kinds form a closed set so callers
// never subscribe to a misspelled topic.
package events

import (
	evbus "github.com/asaskevich/EventBus"
)

// Kind identifies a notification topic.
type Kind string

const (
	AuthChanged         Kind = "authChanged"
	AuthInited          Kind = "authInited"
	AuthError           Kind = "authError"
	AuthRefreshed       Kind = "authRefreshed"
	StructureChanged    Kind = "structureChanged"
	LicencesRetrieved   Kind = "licencesRetrieved"
	BeforeLicenceChange Kind = "beforeLicenceChange"
	LicenceChanged      Kind = "licenceChanged"
	Logout              Kind = "logout"
	BeforeClearAuth     Kind = "beforeClearAuth"
	AuthCleared         Kind = "authCleared"
)

// Bus dispatches notifications synchronously to subscribed handlers,
// preserving the sequential flow of the surrounding session logic.
type Bus struct {
	bus evbus.Bus
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{bus: evbus.New()}
}

// Publish delivers args to every handler subscribed to kind. Handlers run
// synchronously in subscription order.
func (b *Bus) Publish(kind Kind, args ...any) {
	b.bus.Publish(string(kind), args...)
}

// Subscribe registers handler for kind. The handler must be a function
// whose signature matches the arguments published for that kind.
func (b *Bus) Subscribe(kind Kind, handler any) error {
	return b.bus.Subscribe(string(kind), handler)
}

// SubscribeOnce registers handler for a single delivery.
func (b *Bus) SubscribeOnce(kind Kind, handler any) error {
	return b.bus.SubscribeOnce(string(kind), handler)
}

// Unsubscribe removes a previously registered handler.
func (b *Bus) Unsubscribe(kind Kind, handler any) error {
	return b.bus.Unsubscribe(string(kind), handler)
}
