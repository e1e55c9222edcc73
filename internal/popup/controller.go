// Package popup holds the session controller that runs inside the extension popup.
//
// The controller talks to the background process only through a Channel. It
// sends one request per user or system event, interprets the typed reply and
// moves the popup between Loading, Authenticated and Unauthenticated. Views
// subscribe to the state and never build it themselves.
package popup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/FurmanovVitaliy/extension-auth/internal/domain/models"
	"github.com/FurmanovVitaliy/extension-auth/utils"
	"github.com/FurmanovVitaliy/logger"
)

// Channel delivers a request to the background process. The reply callback
// fires at most once. A returned error means the send itself failed.
type Channel interface {
	Send(req models.AuthRequest, reply func(models.AuthResponse)) error
}

// Notifier surfaces a message to the end user.
type Notifier interface {
	Notify(description string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(description string)

func (f NotifierFunc) Notify(description string) { f(description) }

const (
	signInErrorPrefix  = "Error with auth"
	signUpErrorPrefix  = "Error with signup"
	signOutErrorPrefix = "Error signing out"
)

var ErrNoReply = errors.New("no reply from background")

type listener struct {
	id uint64
	fn func(State)
}

type Controller struct {
	log      *slog.Logger
	channel  Channel
	notifier Notifier

	mu        sync.Mutex
	state     State
	listeners []listener
	nextID    uint64
}

// New creates a controller in the Loading state. notifier may be nil.
func New(log *slog.Logger, channel Channel, notifier Notifier) *Controller {
	if notifier == nil {
		notifier = NotifierFunc(func(string) {})
	}
	return &Controller{
		log:      log,
		channel:  channel,
		notifier: notifier,
		state:    loading(),
	}
}

// State returns the current popup state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn to be called after every transition. The returned
// function removes the subscription.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listener{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

func (c *Controller) transition(next State) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	listeners := make([]listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	c.log.Debug("popup state changed",
		slog.String("from", prev.Status().String()),
		slog.Any("to", next),
	)

	for _, l := range listeners {
		l.fn(next)
	}
}

// request sends req and returns a future that completes with the single reply.
func (c *Controller) request(req models.AuthRequest) (<-chan models.AuthResponse, error) {
	done := make(chan models.AuthResponse, 1)
	var once sync.Once

	err := c.channel.Send(req, func(resp models.AuthResponse) {
		once.Do(func() { done <- resp })
	})
	if err != nil {
		return nil, err
	}
	return done, nil
}

// await blocks until the reply arrives or ctx ends. A context error leaves the
// state untouched: the popup keeps showing whatever it showed before.
func await(ctx context.Context, done <-chan models.AuthResponse) (models.AuthResponse, error) {
	select {
	case resp := <-done:
		return resp, nil
	case <-ctx.Done():
		return models.AuthResponse{}, fmt.Errorf("%w: %w", ErrNoReply, ctx.Err())
	}
}

// Mount enters Loading and resolves the stored session. An expired session is
// refreshed once before the popup leaves Loading.
func (c *Controller) Mount(ctx context.Context) error {
	const op = "popup.Controller.Mount"
	log := c.log.With(logger.StringAttr("op", op))

	c.transition(loading())

	done, err := c.request(models.GetSessionRequest())
	if err != nil {
		log.Error("failed to send getsession", logger.ErrAttr(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	resp, err := await(ctx, done)
	if err != nil {
		log.Warn("getsession did not complete", logger.ErrAttr(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	switch {
	case resp.Error != nil:
		if resp.Error.SessionExpired() {
			log.Info("session has expired, attempting to refresh")
			return c.refresh(ctx)
		}
		log.Warn("failed to get session", logger.StringAttr("error", resp.Error.Message))
		c.transition(unauthenticated())
	case resp.Data == nil || resp.Data.Session == nil:
		log.Warn("session data is not available")
		c.transition(unauthenticated())
	case resp.Data.User == nil:
		log.Info("session retrieved without user data")
		c.transition(unauthenticated())
	default:
		log.Info("session retrieved",
			logger.StringAttr("user_id", resp.Data.User.ID),
			slog.Int64("expires_at", resp.Data.Session.ExpiresAt),
		)
		c.transition(authenticated(resp.Data.User, resp.Data.Session.ExpiresAt))
	}

	return nil
}

// SignIn sends the credentials and authenticates the popup on success.
func (c *Controller) SignIn(ctx context.Context, email, password string) error {
	return c.authenticate(ctx, "popup.Controller.SignIn", models.SignInRequest(email, password), signInErrorPrefix, false)
}

// SignUp creates an account and authenticates the popup on success. Unlike
// sign-in, a failed send is also shown to the user.
func (c *Controller) SignUp(ctx context.Context, email, password string) error {
	return c.authenticate(ctx, "popup.Controller.SignUp", models.SignUpRequest(email, password), signUpErrorPrefix, true)
}

func (c *Controller) authenticate(ctx context.Context, op string, req models.AuthRequest, prefix string, notifyTransport bool) error {
	log := c.log.With(
		logger.StringAttr("op", op),
		logger.StringAttr("email", utils.MaskEmail(req.Value.Email)),
	)

	done, err := c.request(req)
	if err != nil {
		log.Error(prefix, logger.ErrAttr(err))
		if notifyTransport {
			c.notifier.Notify(err.Error())
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	resp, err := await(ctx, done)
	if err != nil {
		log.Warn("request did not complete", logger.ErrAttr(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if resp.Error != nil {
		log.Warn(prefix, logger.StringAttr("error", resp.Error.Message))
		c.notifier.Notify(prefix + ": " + resp.Error.Message)
		return nil
	}
	if resp.Data == nil || resp.Data.User == nil {
		log.Warn("response carried no user, state unchanged")
		return nil
	}

	var expiresAt int64
	if resp.Data.Session != nil {
		expiresAt = resp.Data.Session.ExpiresAt
	}
	log.Info("user authenticated", logger.StringAttr("user_id", resp.Data.User.ID))
	c.transition(authenticated(resp.Data.User, expiresAt))
	return nil
}

// SignOut ends the session. On failure the popup stays signed in.
func (c *Controller) SignOut(ctx context.Context) error {
	const op = "popup.Controller.SignOut"
	log := c.log.With(logger.StringAttr("op", op))

	done, err := c.request(models.SignOutRequest())
	if err != nil {
		log.Error(signOutErrorPrefix, logger.ErrAttr(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	resp, err := await(ctx, done)
	if err != nil {
		log.Warn("signout did not complete", logger.ErrAttr(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if resp.Error != nil {
		log.Warn(signOutErrorPrefix, logger.StringAttr("error", resp.Error.Message))
		c.notifier.Notify(signOutErrorPrefix + ": " + resp.Error.Message)
		return nil
	}

	log.Info("user signed out")
	c.transition(unauthenticated())
	return nil
}
