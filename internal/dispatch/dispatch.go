// Package dispatch routes a page token and HTTP method to a view or a controller action.
//
// Page tokens are matched exactly first. Without an exact match, the first
// registered token that is a prefix of the requested one and handles the
// method wins. Tokens keep their first-registration order.
package dispatch

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Action is a named controller method. A map, slice or array result is
// written as the JSON response; any other result leaves the response as the
// action wrote it.
type Action func(c *gin.Context) any

// Controller exposes its actions by name
type Controller interface {
	Actions() map[string]Action
}

// Registry resolves controllers by name
type Registry interface {
	Controller(name string) (Controller, bool)
}

// Controllers is a Registry backed by a map
type Controllers map[string]Controller

func (r Controllers) Controller(name string) (Controller, bool) {
	c, ok := r[name]
	return c, ok
}

// Renderer renders a named view for the request
type Renderer interface {
	Render(c *gin.Context, view string)
}

// ViewChecker is implemented by renderers that can tell whether a view exists
type ViewChecker interface {
	Has(view string) bool
}

// Kind tells how a handler produces its response
type Kind int

const (
	KindView Kind = iota
	KindAction
)

// Handler is what a route executes
type Handler struct {
	Kind       Kind
	View       string
	Controller string
	Action     string
}

func (h Handler) String() string {
	if h.Kind == KindView {
		return "view:" + h.View
	}
	return h.Controller + "." + h.Action
}

type route struct {
	token    string
	handlers map[string]Handler
}

// Dispatcher holds the ordered route table
type Dispatcher struct {
	routes   []*route
	index    map[string]*route
	registry Registry
	renderer Renderer
	log      *zap.Logger
}

// New creates a Dispatcher resolving controllers from registry and views through renderer
func New(registry Registry, renderer Renderer, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		index:    make(map[string]*route),
		registry: registry,
		renderer: renderer,
		log:      log.Named("dispatch"),
	}
}

func normalizeMethod(method string) string {
	return strings.ToUpper(strings.TrimSpace(method))
}

// Handle registers h for token and method, replacing any handler already registered for the pair
func (d *Dispatcher) Handle(token, method string, h Handler) *Dispatcher {
	r, ok := d.index[token]
	if !ok {
		r = &route{token: token, handlers: make(map[string]Handler)}
		d.index[token] = r
		d.routes = append(d.routes, r)
	}
	r.handlers[normalizeMethod(method)] = h
	return d
}

// View registers a view rendered for token and method
func (d *Dispatcher) View(token, method, view string) *Dispatcher {
	return d.Handle(token, method, Handler{Kind: KindView, View: view})
}

// Action registers a controller action invoked for token and method
func (d *Dispatcher) Action(token, method, controller, action string) *Dispatcher {
	return d.Handle(token, method, Handler{Kind: KindAction, Controller: controller, Action: action})
}

// Resolve finds the handler for page and method
func (d *Dispatcher) Resolve(page, method string) (Handler, bool) {
	method = normalizeMethod(method)

	if r, ok := d.index[page]; ok {
		if h, ok := r.handlers[method]; ok {
			return h, true
		}
	}

	for _, r := range d.routes {
		if !strings.HasPrefix(page, r.token) {
			continue
		}
		if h, ok := r.handlers[method]; ok {
			return h, true
		}
	}
	return Handler{}, false
}

// Dispatch runs the handler for page and method and reports whether one was found.
// An action or controller missing from the registry is a configuration error and panics.
func (d *Dispatcher) Dispatch(c *gin.Context, page, method string) bool {
	h, ok := d.Resolve(page, method)
	if !ok {
		d.log.Debug("no route", zap.String("page", page), zap.String("method", method))
		return false
	}

	c.Set("page", page)
	switch h.Kind {
	case KindView:
		if d.renderer == nil {
			panic(fmt.Sprintf("dispatch: no renderer for view %q", h.View))
		}
		d.renderer.Render(c, h.View)
	case KindAction:
		result := d.action(h)(c)
		if isCollection(result) {
			c.JSON(c.Writer.Status(), result)
			c.Abort()
		}
	}
	return true
}

func (d *Dispatcher) action(h Handler) Action {
	ctrl, ok := d.registry.Controller(h.Controller)
	if !ok {
		panic(fmt.Sprintf("dispatch: unknown controller %q", h.Controller))
	}
	action, ok := ctrl.Actions()[h.Action]
	if !ok {
		panic(fmt.Sprintf("dispatch: controller %q has no action %q", h.Controller, h.Action))
	}
	return action
}

// Validate checks every registered handler against the registry and renderer
func (d *Dispatcher) Validate() error {
	var errs []error
	for _, r := range d.routes {
		for method, h := range r.handlers {
			switch h.Kind {
			case KindView:
				if d.renderer == nil {
					errs = append(errs, fmt.Errorf("%s %q: view %q without renderer", method, r.token, h.View))
					continue
				}
				if vc, ok := d.renderer.(ViewChecker); ok && !vc.Has(h.View) {
					errs = append(errs, fmt.Errorf("%s %q: unknown view %q", method, r.token, h.View))
				}
			case KindAction:
				ctrl, ok := d.registry.Controller(h.Controller)
				if !ok {
					errs = append(errs, fmt.Errorf("%s %q: unknown controller %q", method, r.token, h.Controller))
					continue
				}
				if _, ok := ctrl.Actions()[h.Action]; !ok {
					errs = append(errs, fmt.Errorf("%s %q: controller %q has no action %q", method, r.token, h.Controller, h.Action))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// Route describes one registered token and method
type Route struct {
	Token   string
	Method  string
	Handler Handler
}

// Routes lists the route table in registration order of tokens
func (d *Dispatcher) Routes() []Route {
	var out []Route
	for _, r := range d.routes {
		for _, m := range slices.Sorted(maps.Keys(r.handlers)) {
			out = append(out, Route{Token: r.token, Method: m, Handler: r.handlers[m]})
		}
	}
	return out
}

func isCollection(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return true
	}
	return false
}
