package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"permitflow/internal/config"
	"permitflow/internal/services"
)

// Launcher owns the shared headless Chrome exec allocator. One launcher serves
// the whole process; every user session gets its own tab tree via NewSession.
type Launcher struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc

	navTimeout  time.Duration
	elemTimeout time.Duration
}

// NewLauncher starts the shared allocator from configuration.
func NewLauncher(cfg *config.Config) *Launcher {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Browser.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.Browser.NoSandbox {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}
	if path := strings.TrimSpace(cfg.Browser.ChromePath); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Launcher{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		navTimeout:  time.Duration(cfg.Portal.NavigationTimeout) * time.Second,
		elemTimeout: time.Duration(cfg.Portal.ElementTimeout) * time.Second,
	}
}

// Close tears down the allocator and every browser spawned from it.
func (l *Launcher) Close() {
	if l != nil && l.allocCancel != nil {
		l.allocCancel()
	}
}

// NewSession opens a dedicated browser context (its own Chrome tab tree) for
// one user session. The caller must Close it on every exit path.
func (l *Launcher) NewSession() *Session {
	ctx, cancel := chromedp.NewContext(l.allocCtx)
	return &Session{
		ctx:         ctx,
		cancel:      cancel,
		navTimeout:  l.navTimeout,
		elemTimeout: l.elemTimeout,
	}
}

// Session is one isolated browser context. All page operations run under a
// short bounded timeout; a hung remote page surfaces as a timeout failure.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	navTimeout  time.Duration
	elemTimeout time.Duration

	closeOnce sync.Once
}

// Close releases the browser context. Safe to call more than once and from
// any exit path; leaking Chrome processes is the failure mode this guards.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	// Propagate caller cancellation into the chromedp context so an exiting
	// session aborts in-flight browser work instead of awaiting it.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "browser", "run", fmt.Sprintf("timed out after %s", timeout), err)
	}
	return err
}

// Navigate loads a URL under the navigation timeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, s.navTimeout, chromedp.Navigate(url))
}

// Reload reloads the current page.
func (s *Session) Reload(ctx context.Context) error {
	return s.run(ctx, s.navTimeout, chromedp.Reload())
}

// Fill sets the value of an input field.
func (s *Session) Fill(ctx context.Context, selector, value string) error {
	return s.run(ctx, s.elemTimeout, chromedp.SetValue(selector, value, chromedp.ByQuery))
}

// Click clicks a visible element matched by CSS selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	return s.run(ctx, s.elemTimeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// ClickXPath clicks a visible element matched by XPath. The portal's menu
// links carry no stable ids, only text.
func (s *Session) ClickXPath(ctx context.Context, expr string) error {
	return s.run(ctx, s.elemTimeout, chromedp.Click(expr, chromedp.BySearch, chromedp.NodeVisible))
}

// WaitVisible blocks until the element is visible or the timeout elapses.
func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Visible reports whether the element exists and is currently rendered.
func (s *Session) Visible(ctx context.Context, selector string) (bool, error) {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) { return false; }
		const style = window.getComputedStyle(el);
		return style.display !== "none" && style.visibility !== "hidden" && el.offsetParent !== null;
	})()`, selector)
	var visible bool
	if err := s.run(ctx, s.elemTimeout, chromedp.Evaluate(script, &visible)); err != nil {
		return false, err
	}
	return visible, nil
}

// Text returns the inner text of the first element matching the selector.
func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	var text string
	if err := s.run(ctx, s.elemTimeout, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Screenshot captures the rendered element as PNG bytes.
func (s *Session) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, s.elemTimeout, chromedp.Screenshot(selector, &buf, chromedp.ByQuery)); err != nil {
		return nil, err
	}
	return buf, nil
}

// SelectIndex selects the option at the given index of a dropdown and fires
// its change event, matching what the portal's postback scripts listen for.
func (s *Session) SelectIndex(ctx context.Context, selector string, index int) error {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) { return false; }
		el.selectedIndex = %d;
		el.dispatchEvent(new Event("change", { bubbles: true }));
		return true;
	})()`, selector, index)
	var ok bool
	if err := s.run(ctx, s.elemTimeout, chromedp.Evaluate(script, &ok)); err != nil {
		return err
	}
	if !ok {
		return services.Wrap(services.ErrValidation, "browser", "select", fmt.Sprintf("no element matches %q", selector), nil)
	}
	return nil
}

// Sleep yields for a fixed settle delay. The portal re-renders parts of the
// page after postbacks without any await-able signal.
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	return s.run(ctx, d+time.Second, chromedp.Sleep(d))
}

// AcceptDialogs installs an auto-accept policy for native browser dialogs so
// the pipeline is never blocked on an unexpected prompt.
func (s *Session) AcceptDialogs() {
	chromedp.ListenTarget(s.ctx, func(ev any) {
		if _, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			go func() {
				_ = chromedp.Run(s.ctx, page.HandleJavaScriptDialog(true))
			}()
		}
	})
}

// OpenLookup opens a fresh tab in this session's browser and navigates it to
// the given URL. The returned session shares the browser but owns the tab.
func (s *Session) OpenLookup(ctx context.Context, url string) (*Session, error) {
	tabCtx, tabCancel := chromedp.NewContext(s.ctx)
	tab := &Session{
		ctx:         tabCtx,
		cancel:      tabCancel,
		navTimeout:  s.navTimeout,
		elemTimeout: s.elemTimeout,
	}
	if err := tab.Navigate(ctx, url); err != nil {
		tab.Close()
		return nil, err
	}
	return tab, nil
}
