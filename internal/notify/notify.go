package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Notification variants.
const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

type (
	// A Variant is the severity of a notification.
	Variant string

	// A Notification is a user-facing, non-blocking message.
	Notification struct {
		Title       string
		Description string
		Variant     Variant
	}

	// A Notifier surfaces notifications to the user.
	Notifier interface {
		Notify(n Notification)
	}

	// NotifierFunc is an adapter to use ordinary functions as Notifier.
	NotifierFunc func(n Notification)

	writer struct {
		sync.Mutex
		w io.Writer
	}

	logger struct {
		log logrus.FieldLogger
	}

	multi []Notifier
)

// Info returns a default notification.
func Info(title, description string) Notification {
	return Notification{Title: title, Description: description, Variant: VariantDefault}
}

// Error returns a destructive notification.
func Error(title string, err error) Notification {
	return Notification{Title: title, Description: err.Error(), Variant: VariantDestructive}
}

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

// Discard is a Notifier that drops all notifications.
var Discard Notifier = NotifierFunc(func(Notification) {})

// NewWriter returns a Notifier printing notifications on w.
func NewWriter(w io.Writer) Notifier {
	return &writer{w: w}
}

func (n *writer) Notify(notification Notification) {
	n.Lock()
	defer n.Unlock()

	prefix := "*"
	if notification.Variant == VariantDestructive {
		prefix = "!"
	}
	fmt.Fprintf(n.w, "%s %s: %s\n", prefix, notification.Title, notification.Description)
}

// NewLogger returns a Notifier writing notifications in the given logger.
func NewLogger(log logrus.FieldLogger) Notifier {
	return &logger{log: log}
}

func (n *logger) Notify(notification Notification) {
	entry := n.log.WithField("notification", notification.Title)
	if notification.Variant == VariantDestructive {
		entry.Error(notification.Description)
		return
	}
	entry.Info(notification.Description)
}

// Multi returns a Notifier forwarding notifications to all the given notifiers.
func Multi(notifiers ...Notifier) Notifier {
	return multi(notifiers)
}

func (m multi) Notify(n Notification) {
	for _, notifier := range m {
		notifier.Notify(n)
	}
}

////////////////////
//                //
// Recorder       //
//                //
////////////////////

// A Recorder is a Notifier that keeps all notifications in memory.
type Recorder struct {
	mu            sync.Mutex
	notifications []Notification
}

// Notify implements Notifier.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

// Notifications returns a copy of the recorded notifications.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notifications...)
}

// Titles returns the titles of the recorded notifications.
func (r *Recorder) Titles() []string {
	var titles []string
	for _, n := range r.Notifications() {
		titles = append(titles, n.Title)
	}
	return titles
}

// Reset drops the recorded notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = nil
}
