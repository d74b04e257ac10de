package actor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// registerConfig holds optional configuration for actor registration.
type registerConfig struct {
	// cleanupTimeout overrides the default OnStop cleanup timeout.
	cleanupTimeout fn.Option[time.Duration]
}

// RegisterOption is a functional option for configuring actor registration
// via RegisterWithSystem.
type RegisterOption func(*registerConfig)

// WithCleanupTimeout sets the OnStop cleanup timeout for the actor. Use a
// longer timeout for actors that manage external resources requiring graceful
// shutdown.
func WithCleanupTimeout(d time.Duration) RegisterOption {
	return func(cfg *registerConfig) {
		cfg.cleanupTimeout = fn.Some(d)
	}
}

// stoppable defines an interface for components that can be stopped. This is
// an internal detail of ActorSystem for managing actors that need to be shut
// down.
type stoppable interface {
	Stop()
}

// SystemConfig holds configuration parameters for the ActorSystem.
type SystemConfig struct {
	// MailboxCapacity is the default capacity for actor mailboxes.
	MailboxCapacity int
}

// DefaultConfig returns a default configuration for the ActorSystem.
func DefaultConfig() SystemConfig {
	return SystemConfig{
		MailboxCapacity: 100,
	}
}

// ActorSystem manages the lifecycle of actors and provides coordination
// services such as a receptionist for actor discovery and a dead letter
// office for undeliverable messages. It also handles the graceful shutdown of
// all managed actors.
type ActorSystem struct {
	// receptionist is used for actor discovery.
	receptionist *Receptionist

	// actors stores all actors managed by the system, keyed by their ID.
	// This includes the deadLetterActor.
	actors map[string]stoppable

	// deadLetterActor handles undeliverable messages.
	deadLetterActor ActorRef[Message, any]

	// config holds the system-wide configuration.
	config SystemConfig

	// mu protects the 'actors' map.
	mu sync.RWMutex

	// ctx is the main context for the actor system.
	ctx context.Context

	// cancel cancels the main system context.
	cancel context.CancelFunc

	// actorWg tracks running actor goroutines for deterministic shutdown.
	actorWg sync.WaitGroup
}

// NewActorSystem creates a new actor system using the default configuration.
func NewActorSystem() *ActorSystem {
	return NewActorSystemWithConfig(DefaultConfig())
}

// NewActorSystemWithConfig creates a new actor system with a custom
// configuration.
func NewActorSystemWithConfig(config SystemConfig) *ActorSystem {
	ctx, cancel := context.WithCancel(context.Background())

	system := &ActorSystem{
		receptionist: newReceptionist(),
		config:       config,
		actors:       make(map[string]stoppable),
		ctx:          ctx,
		cancel:       cancel,
	}

	// The dead letter actor simply rejects every message it receives. Its
	// own DLO reference is nil to prevent loops if messages to the DLO
	// itself fail.
	deadLetterBehavior := NewFunctionBehavior(
		func(ctx context.Context, msg Message) fn.Result[any] {
			return fn.Err[any](errors.New(
				"message undeliverable: " + msg.MessageType(),
			))
		},
	)

	deadLetterRawActor := NewActor[Message, any](ActorConfig[Message, any]{
		ID:          "dead-letters",
		Behavior:    deadLetterBehavior,
		DLO:         nil,
		MailboxSize: config.MailboxCapacity,
		Wg:          &system.actorWg,
	})
	deadLetterRawActor.Start()
	system.deadLetterActor = deadLetterRawActor.Ref()

	// No lock needed here as 'system' is not yet accessible concurrently.
	system.actors[deadLetterRawActor.id] = deadLetterRawActor

	return system
}

// newStoppedActorRef creates a stopped actor reference with the given ID.
// This is used to return a safe non-nil reference when actor creation fails,
// ensuring any calls to the returned ref will fail with ErrActorTerminated
// rather than causing a nil pointer panic.
func newStoppedActorRef[M Message, R any](id string) ActorRef[M, R] {
	a := NewActor(ActorConfig[M, R]{ID: id})
	a.Stop()
	return a.Ref()
}

// RegisterWithSystem creates an actor with the given ID, service key, and
// behavior within the specified ActorSystem. It starts the actor, adds it to
// the system's management, registers it with the receptionist using the
// provided key, and returns its ActorRef.
func RegisterWithSystem[M Message, R any](as *ActorSystem, id string,
	key ServiceKey[M, R], behavior ActorBehavior[M, R],
	opts ...RegisterOption,
) ActorRef[M, R] {
	if as.ctx.Err() != nil {
		// The system is shutting down; return a reference to a dummy
		// actor that is already stopped so callers fail with
		// ErrActorTerminated instead of panicking on nil.
		return newStoppedActorRef[M, R](id)
	}

	var regCfg registerConfig
	for _, opt := range opts {
		opt(&regCfg)
	}

	actorInstance := NewActor(ActorConfig[M, R]{
		ID:             id,
		Behavior:       behavior,
		DLO:            as.deadLetterActor,
		MailboxSize:    as.config.MailboxCapacity,
		Wg:             &as.actorWg,
		CleanupTimeout: regCfg.cleanupTimeout,
	})
	actorInstance.Start()

	as.mu.Lock()
	as.actors[actorInstance.id] = actorInstance
	as.mu.Unlock()

	// Make the actor discoverable by other parts of the system.
	err := RegisterWithReceptionist(as.receptionist, key, actorInstance.Ref())
	if err != nil {
		// Type mismatch detected. Stop the actor we just created and
		// return a dummy stopped actor to avoid nil panic.
		actorInstance.Stop()
		as.mu.Lock()
		delete(as.actors, actorInstance.id)
		as.mu.Unlock()

		return newStoppedActorRef[M, R](id)
	}

	log.DebugS(as.ctx, "Actor registered with system",
		"actor_id", id,
		"service_key", key.name)

	return actorInstance.Ref()
}

// Receptionist returns the system's receptionist, which can be used for actor
// service discovery (finding actors by ServiceKey).
func (as *ActorSystem) Receptionist() *Receptionist {
	return as.receptionist
}

// DeadLetters returns a reference to the system's dead letter actor.
func (as *ActorSystem) DeadLetters() ActorRef[Message, any] {
	return as.deadLetterActor
}

// Shutdown gracefully stops the actor system and waits for all actors to
// finish processing, or until the provided context expires. This method is
// safe for concurrent use.
func (as *ActorSystem) Shutdown(ctx context.Context) error {
	// Cancel the main system context first to prevent new actor
	// registrations. Any RegisterWithSystem call after this point sees
	// as.ctx.Err() != nil and returns a dummy stopped actor. This
	// ordering prevents a race where a new actor could increment the
	// WaitGroup after we snapshot but before we wait.
	as.cancel()

	// Snapshot the actors to stop so we don't hold the lock while calling
	// Stop() on each one.
	var actorsToStop []stoppable
	as.mu.RLock()
	for _, a := range as.actors {
		actorsToStop = append(actorsToStop, a)
	}
	as.mu.RUnlock()

	log.InfoS(ctx, "Actor system shutting down",
		"num_actors", len(actorsToStop))

	for _, a := range actorsToStop {
		a.Stop()
	}

	as.mu.Lock()
	as.actors = nil
	as.mu.Unlock()

	// Wait for all actor goroutines to exit, respecting the context
	// deadline. If the context times out, the waiting goroutine keeps
	// running until the WaitGroup reaches zero; that single goroutine is
	// negligible compared to potentially leaked actor goroutines.
	done := make(chan struct{})
	go func() {
		as.actorWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.InfoS(ctx, "Actor system shutdown completed")

		return nil

	case <-ctx.Done():
		log.ErrorS(ctx, "Actor system shutdown incomplete, "+
			"some actors may have leaked", ctx.Err())

		return ctx.Err()
	}
}

// StopAndRemoveActor stops a specific actor by its ID and removes it from the
// ActorSystem's management. It returns true if the actor was found and
// stopped, false otherwise.
func (as *ActorSystem) StopAndRemoveActor(id string) bool {
	as.mu.Lock()
	defer as.mu.Unlock()

	actorToStop, exists := as.actors[id]
	if !exists {
		return false
	}

	actorToStop.Stop()
	delete(as.actors, id)

	log.DebugS(as.ctx, "Actor stopped and removed from system",
		"actor_id", id)

	return true
}

// ServiceKey is a type-safe identifier used for registering and discovering
// actors via the Receptionist. The generic type parameters M (Message) and R
// (Response) ensure that only actors handling compatible message/response
// types are associated with and retrieved for this key.
type ServiceKey[M Message, R any] struct {
	name string
}

// NewServiceKey creates a new service key with the given name. The name is
// used as the lookup key within the Receptionist.
func NewServiceKey[M Message, R any](name string) ServiceKey[M, R] {
	return ServiceKey[M, R]{name: name}
}

// Spawn registers an actor for this service key within the given ActorSystem.
// It's a convenience method that calls RegisterWithSystem, starting the actor
// and registering it with the receptionist.
func (sk ServiceKey[M, R]) Spawn(as *ActorSystem, id string,
	behavior ActorBehavior[M, R],
) ActorRef[M, R] {
	return RegisterWithSystem(as, id, sk, behavior)
}

// Ref returns the first actor registered under this service key, or a stopped
// reference if none is registered. Components that hold only a SystemContext
// can use this for discovery without direct wiring.
func (sk ServiceKey[M, R]) Ref(sys SystemContext) ActorRef[M, R] {
	refs := FindInReceptionist(sys.Receptionist(), sk)
	if len(refs) == 0 {
		return newStoppedActorRef[M, R](sk.name + "-unregistered")
	}

	return refs[0]
}

// Unregister removes an actor reference associated with this service key from
// the receptionist. The actor continues running and can still be accessed
// through other service keys it may be registered under.
//
// Returns true if the actor was found and unregistered, false otherwise.
func (sk ServiceKey[M, R]) Unregister(sys SystemContext,
	refToRemove ActorRef[M, R],
) bool {
	return UnregisterFromReceptionist(
		sys.Receptionist(), sk, refToRemove,
	)
}

// serviceTypeInfo captures the type signature of a service for validation.
type serviceTypeInfo struct {
	msgTypeName  string
	respTypeName string
}

// Receptionist provides service discovery for actors. Actors can be
// registered under a ServiceKey and later discovered by other actors or
// system components.
type Receptionist struct {
	// registrations stores ActorRef instances as BaseActorRef, keyed by
	// ServiceKey.name.
	registrations map[string][]BaseActorRef

	// typeRegistry tracks the types registered under each service name to
	// prevent type conflicts.
	typeRegistry map[string]serviceTypeInfo

	// mu protects access to registrations and typeRegistry.
	mu sync.RWMutex
}

// newReceptionist creates a new Receptionist instance.
func newReceptionist() *Receptionist {
	return &Receptionist{
		registrations: make(map[string][]BaseActorRef),
		typeRegistry:  make(map[string]serviceTypeInfo),
	}
}

// RegisterWithReceptionist registers an actor with a service key in the given
// receptionist. This is a package-level generic function because methods
// cannot have their own type parameters in Go. It validates that the service
// key types match any existing registrations under the same name and returns
// an error if there's a type mismatch.
func RegisterWithReceptionist[M Message, R any](
	r *Receptionist, key ServiceKey[M, R], ref ActorRef[M, R],
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Extract type names for validation via reflect to avoid allocating
	// zero-value instances of the generic parameters.
	msgTypeName := reflect.TypeOf((*M)(nil)).Elem().String()
	respTypeName := reflect.TypeOf((*R)(nil)).Elem().String()

	expectedTypes := serviceTypeInfo{
		msgTypeName:  msgTypeName,
		respTypeName: respTypeName,
	}

	if existingTypes, exists := r.typeRegistry[key.name]; exists {
		if existingTypes != expectedTypes {
			return fmt.Errorf("%w: service '%s' already registered "+
				"with types (%s, %s), cannot register with (%s, %s)",
				ErrServiceKeyTypeMismatch, key.name,
				existingTypes.msgTypeName, existingTypes.respTypeName,
				msgTypeName, respTypeName)
		}
	} else {
		r.typeRegistry[key.name] = expectedTypes
	}

	r.registrations[key.name] = append(r.registrations[key.name], ref)

	return nil
}

// FindInReceptionist returns all actors registered with a service key in the
// given receptionist. It performs a type assertion from BaseActorRef to the
// specific ActorRef[M, R] type to ensure type safety.
func FindInReceptionist[M Message, R any](
	r *Receptionist, key ServiceKey[M, R],
) []ActorRef[M, R] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if baseRefs, exists := r.registrations[key.name]; exists {
		typedRefs := make([]ActorRef[M, R], 0, len(baseRefs))
		for _, baseRef := range baseRefs {
			if typedRef, ok := baseRef.(ActorRef[M, R]); ok {
				typedRefs = append(typedRefs, typedRef)
			}
		}
		return typedRefs
	}

	return nil
}

// UnregisterFromReceptionist removes an actor reference from a service key in
// the given receptionist. It returns true if the reference was found and
// removed, and false otherwise.
func UnregisterFromReceptionist[M Message, R any](r *Receptionist,
	key ServiceKey[M, R], refToRemove ActorRef[M, R],
) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	refs, exists := r.registrations[key.name]
	if !exists {
		return false
	}

	found := false

	newRefs := make([]BaseActorRef, 0, len(refs))
	for _, baseRef := range refs {
		if specificActorRef, ok := baseRef.(ActorRef[M, R]); ok {
			if specificActorRef == refToRemove {
				found = true
				continue
			}
		}
		newRefs = append(newRefs, baseRef)
	}

	if !found {
		return false
	}

	// If the last reference is gone, remove the key and its type registry
	// entry so the name can be re-registered with different types later.
	if len(newRefs) == 0 {
		delete(r.registrations, key.name)
		delete(r.typeRegistry, key.name)
	} else {
		r.registrations[key.name] = newRefs
	}

	return true
}
