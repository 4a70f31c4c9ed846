package pool

import (
	"context"
	"sync"

	"github.com/use-agent/browserd/engine"
)

// fakeDriver implements engine.Driver in memory so pool behavior is
// deterministic and testable without a browser install.
type fakeDriver struct {
	mu        sync.Mutex
	started   bool
	stopped   bool
	starts    int
	launches  int
	launchErr error // when set, Launch fails with it
	targetErr error // when set, NewTarget fails with it
	closeErr  error // when set, stamped onto new targets' Close

	browsers []*fakeBrowser
}

func newFakeDriver() *fakeDriver { return &fakeDriver{} }

func (d *fakeDriver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = true
	d.stopped = false
	d.starts++
	return nil
}

func (d *fakeDriver) Launch(ctx context.Context, opts engine.LaunchOptions) (engine.Browser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.launchErr != nil {
		return nil, d.launchErr
	}
	d.launches++
	b := &fakeBrowser{drv: d, kind: opts.Kind}
	d.browsers = append(d.browsers, b)
	return b, nil
}

func (d *fakeDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	return nil
}

func (d *fakeDriver) setLaunchErr(err error) {
	d.mu.Lock()
	d.launchErr = err
	d.mu.Unlock()
}

func (d *fakeDriver) setTargetErr(err error) {
	d.mu.Lock()
	d.targetErr = err
	d.mu.Unlock()
}

func (d *fakeDriver) setTargetCloseErr(err error) {
	d.mu.Lock()
	d.closeErr = err
	d.mu.Unlock()
}

func (d *fakeDriver) startCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts
}

func (d *fakeDriver) launchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.launches
}

type fakeBrowser struct {
	drv  *fakeDriver
	kind engine.Kind

	mu      sync.Mutex
	closed  bool
	targets int
}

func (b *fakeBrowser) Kind() engine.Kind { return b.kind }

func (b *fakeBrowser) NewTarget(ctx context.Context, opts engine.TargetOptions) (engine.Target, error) {
	b.drv.mu.Lock()
	targetErr := b.drv.targetErr
	closeErr := b.drv.closeErr
	b.drv.mu.Unlock()
	if targetErr != nil {
		return nil, targetErr
	}
	b.mu.Lock()
	b.targets++
	b.mu.Unlock()
	return &fakeTarget{closeErr: closeErr}, nil
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// fakeTarget is a page stand-in. Operations succeed unless the target is
// closed, and Close counts invocations so idempotency is checkable.
type fakeTarget struct {
	mu       sync.Mutex
	closed   bool
	closes   int
	closeErr error
	url      string
}

func (t *fakeTarget) Navigate(ctx context.Context, url string, _ engine.NavigateOptions) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return "", engine.ErrEngineClosed
	}
	t.url = url
	return url, nil
}

func (t *fakeTarget) Click(context.Context, string, engine.ClickOptions) error { return nil }

func (t *fakeTarget) Fill(context.Context, string, string, engine.FillOptions) error { return nil }

func (t *fakeTarget) WaitForSelector(context.Context, string, engine.WaitOptions) error { return nil }

func (t *fakeTarget) Text(context.Context, string) (string, error) { return "fake text", nil }

func (t *fakeTarget) Attribute(context.Context, string, string) (string, error) { return "", nil }

func (t *fakeTarget) Title(context.Context) (string, error) { return "fake page", nil }

func (t *fakeTarget) URL() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.url
}

func (t *fakeTarget) HTML(context.Context) (string, error) { return "<html></html>", nil }

func (t *fakeTarget) Screenshot(context.Context, engine.ScreenshotOptions) ([]byte, error) {
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func (t *fakeTarget) Evaluate(context.Context, string) (any, error) { return nil, nil }

func (t *fakeTarget) Close(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closes++
	t.closed = true
	return t.closeErr
}

func (t *fakeTarget) closeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closes
}
