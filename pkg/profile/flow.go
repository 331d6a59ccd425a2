// Package profile implements the publisher profile edit flow: load the
// profile, stage an avatar with a local preview, then upload, refresh the
// session and update the profile in that order.
package profile

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/dbdev/pkg/auth"
	"github.com/matzehuels/dbdev/pkg/data"
	"github.com/matzehuels/dbdev/pkg/query"
	"github.com/matzehuels/dbdev/pkg/registry"
	"github.com/matzehuels/dbdev/pkg/storage"
)

// State is the position of an EditFlow in its lifecycle.
type State int

const (
	StateLoading State = iota
	StateReady
	StateSubmitting
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Messages shown to the user.
const (
	SuccessMessage = "Successfully updated profile!"
	ErrorPrefix    = "Sorry, we had an unexpected error. Please try again. - "
	siteTitle      = "The Database Package Manager"
)

// Avatar is a staged avatar file.
type Avatar struct {
	Name        string
	ContentType string
	Data        []byte
}

// Extension returns the text after the last dot of the file name, or the
// whole name when it has none.
func (a Avatar) Extension() string {
	return a.Name[strings.LastIndex(a.Name, ".")+1:]
}

// Result is the outcome of a submit.
type Result struct {
	// FieldErrors is set when the values did not validate; nothing was sent.
	FieldErrors map[string]error
	// FormError is the single form-level message of a failed submit.
	FormError    string
	Notification string
	Redirect     string
}

// Deps are the collaborators of an EditFlow.
type Deps struct {
	Queries   *data.Queries
	Client    *query.Client
	Uploader  storage.Uploader
	Refresher auth.Refresher
	Logger    *log.Logger
	Now       func() time.Time
}

// EditFlow edits the profile of one handle. It is safe for concurrent use.
type EditFlow struct {
	handle string
	deps   Deps

	mu      sync.Mutex
	state   State
	profile *registry.Profile
	initial Values
	staged  *Avatar
	preview string

	gen         uint64
	previewDone chan struct{}
}

// NewEditFlow returns a flow for handle in the loading state.
func NewEditFlow(handle string, deps Deps) *EditFlow {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	done := make(chan struct{})
	close(done)
	return &EditFlow{handle: handle, deps: deps, state: StateLoading, previewDone: done}
}

// Load fetches the profile through the query client and moves the flow to
// ready. The preview starts as the current avatar URL.
func (f *EditFlow) Load(ctx context.Context) error {
	obs := query.Use(ctx, f.deps.Client, f.deps.Queries.Profile, data.ProfileVariables{Handle: f.handle})
	defer obs.Close()

	st, err := obs.Wait(ctx)
	if err != nil {
		return err
	}
	if st.Err != nil {
		return st.Err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if st.Status == query.StatusSuccess {
		p := st.Data
		f.profile = &p
		f.preview = p.AvatarURL
	}
	f.initial = initialValues(f.profile)
	f.state = StateReady
	return nil
}

func initialValues(p *registry.Profile) Values {
	if p == nil {
		return Values{}
	}
	return Values{
		Bio:          p.Bio,
		Handle:       p.Handle,
		DisplayName:  p.DisplayName,
		ContactEmail: p.ContactEmail,
	}
}

// State returns the current state.
func (f *EditFlow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Profile returns the loaded profile, or nil.
func (f *EditFlow) Profile() *registry.Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile
}

// InitialValues returns the form values derived from the loaded profile.
func (f *EditFlow) InitialValues() Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initial
}

// Title is the page title.
func (f *EditFlow) Title() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profile == nil {
		return siteTitle
	}
	return f.profile.DisplayName + " | " + siteTitle
}

// Heading is the page heading, e.g. "Edit user".
func (f *EditFlow) Heading() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profile == nil {
		return "Edit "
	}
	return "Edit " + f.profile.Type
}

// Preview returns the preview image: a data URL for a staged avatar, or the
// current avatar URL.
func (f *EditFlow) Preview() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.preview
}

// SelectAvatar stages a file for upload and starts reading it into a data
// URL preview. A later selection supersedes an earlier one, including its
// pending read.
func (f *EditFlow) SelectAvatar(a Avatar) error {
	if err := ValidateAvatar(a.ContentType); err != nil {
		return err
	}

	f.mu.Lock()
	f.gen++
	gen := f.gen
	f.staged = &a
	done := make(chan struct{})
	f.previewDone = done
	f.mu.Unlock()

	go func() {
		url := dataURL(a)
		f.mu.Lock()
		if gen == f.gen {
			f.preview = url
			close(done)
		}
		f.mu.Unlock()
	}()
	return nil
}

// WaitPreview blocks until the read of the latest selection has updated the
// preview and returns it.
func (f *EditFlow) WaitPreview(ctx context.Context) (string, error) {
	for {
		f.mu.Lock()
		done, gen := f.previewDone, f.gen
		f.mu.Unlock()

		select {
		case <-done:
			f.mu.Lock()
			current := f.gen == gen
			preview := f.preview
			f.mu.Unlock()
			if current {
				return preview, nil
			}
		case <-ctx.Done():
			return f.Preview(), ctx.Err()
		}
	}
}

func dataURL(a Avatar) string {
	return "data:" + a.ContentType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// Submit saves the form. With no loaded profile it logs and does nothing.
// Otherwise it uploads the staged avatar, refreshes the session and updates
// the profile, strictly in that order. An upload failure is logged and the
// update proceeds without a new avatar.
func (f *EditFlow) Submit(ctx context.Context, v Values) Result {
	if errs := v.Validate(); errs != nil {
		return Result{FieldErrors: errs}
	}

	f.mu.Lock()
	if f.profile == nil || f.profile.ID == "" {
		f.mu.Unlock()
		f.deps.Logger.Error("profile is required", "handle", f.handle)
		return Result{}
	}
	if f.state == StateSubmitting {
		f.mu.Unlock()
		return Result{}
	}
	f.state = StateSubmitting
	p := *f.profile
	staged := f.staged
	f.mu.Unlock()

	avatarURL := f.upload(ctx, staged)

	err := f.save(ctx, data.UpdateProfileVariables{
		Handle:      p.Handle,
		DisplayName: strings.TrimSpace(v.DisplayName),
		Bio:         v.Bio,
		AvatarURL:   avatarURL,
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state = StateFailed
		return Result{FormError: ErrorPrefix + err.Error()}
	}
	f.state = StateSuccess
	f.staged = nil
	return Result{Notification: SuccessMessage, Redirect: "/" + f.handle}
}

func (f *EditFlow) save(ctx context.Context, vars data.UpdateProfileVariables) error {
	if f.deps.Refresher != nil {
		if err := f.deps.Refresher.RefreshSession(ctx); err != nil {
			return err
		}
	}
	return f.deps.Queries.UpdateProfile(ctx, f.deps.Client, vars)
}

// upload stores a staged avatar and returns its public URL, or "" when
// nothing was staged or the upload failed.
func (f *EditFlow) upload(ctx context.Context, a *Avatar) string {
	if a == nil || f.deps.Uploader == nil {
		return ""
	}
	path := AvatarPath(f.handle, a.Extension(), f.deps.Now())
	err := f.deps.Uploader.Upload(ctx, path, bytes.NewReader(a.Data), storage.UploadOptions{
		CacheControl: storage.AvatarCacheControl,
		ContentType:  a.ContentType,
	})
	if err != nil {
		f.deps.Logger.Warn("Error uploading file", "path", path, "err", err)
		return ""
	}
	f.deps.Logger.Debug("uploaded avatar", "path", path)
	return f.deps.Uploader.PublicURL(path)
}

// AvatarPath is the object path of an avatar uploaded at t.
func AvatarPath(handle, ext string, t time.Time) string {
	return fmt.Sprintf("%s/avatar-%s.%s", handle, strconv.FormatInt(t.UnixMilli(), 10), ext)
}
