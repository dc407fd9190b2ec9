package form

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ngmaloney/park-terminal/internal/models"
	"github.com/ngmaloney/park-terminal/internal/parksapi"
	"github.com/ngmaloney/park-terminal/internal/parksapi/parksapitest"
	"github.com/ngmaloney/park-terminal/internal/platform"
	"github.com/ngmaloney/park-terminal/internal/validation"
)

func online() *platform.Static {
	return &platform.Static{IsOnline: true}
}

func fillValid(t *testing.T, c *Controller) {
	t.Helper()
	values := map[validation.Field]string{
		validation.FieldName:         "  Parque de la Salud ",
		validation.FieldAbbreviation: "pds",
		validation.FieldImageURL:     "https://images.example.com/parks/salud.png",
		validation.FieldAddress:      "Carrera 100 con Calle 16",
		validation.FieldCity:         "Cali",
		validation.FieldPostalCode:   "760033",
		validation.FieldLatitude:     "3.3725",
		validation.FieldLongitude:    "-76.5311",
	}
	for f, v := range values {
		if msg, err := c.Set(f, v); err != nil || msg != "" {
			t.Fatalf("Set(%s, %q) = %q, %v", f, v, msg, err)
		}
	}
}

func TestNewCreate(t *testing.T) {
	c := NewCreate(parksapitest.New(), online(), Options{})

	if c.Mode() != ModeCreate {
		t.Errorf("Mode() = %v, want ModeCreate", c.Mode())
	}
	if c.State() != StateEditing {
		t.Errorf("State() = %v, want editing", c.State())
	}
	if got := c.Value(validation.FieldState); got != models.DefaultState {
		t.Errorf("state field = %q, want %q", got, models.DefaultState)
	}
	if c.MaxAttempts() != DefaultMaxAttempts {
		t.Errorf("MaxAttempts() = %d, want %d", c.MaxAttempts(), DefaultMaxAttempts)
	}
}

func TestSet(t *testing.T) {
	c := NewCreate(parksapitest.New(), online(), Options{})

	msg, err := c.Set(validation.FieldPostalCode, "110111")
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if msg == "" {
		t.Fatal("Set(bad postal code) should return a message")
	}
	if c.FieldError(validation.FieldPostalCode) != msg {
		t.Errorf("FieldError() = %q, want %q", c.FieldError(validation.FieldPostalCode), msg)
	}

	if msg, _ := c.Set(validation.FieldPostalCode, "760001"); msg != "" {
		t.Errorf("Set(valid postal code) = %q", msg)
	}
	if c.FieldError(validation.FieldPostalCode) != "" {
		t.Error("FieldError() should clear once the field is valid")
	}

	if _, err := c.Set(validation.Field("website"), "x"); err == nil {
		t.Error("Set(unknown field) should fail")
	}
}

func TestCreate(t *testing.T) {
	client := parksapitest.New()
	c := NewCreate(client, online(), Options{})
	fillValid(t, c)

	conf, err := c.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if len(conf.Lines) != len(validation.Fields()) {
		t.Errorf("len(Lines) = %d, want %d", len(conf.Lines), len(validation.Fields()))
	}
	if len(client.Calls("")) != 0 {
		t.Fatal("Prepare() must not call the client")
	}

	res := c.Execute(context.Background())
	if !res.OK() {
		t.Fatalf("Execute() error = %v", res.Err)
	}
	if !res.Refresh {
		t.Error("Refresh = false, want list re-fetch after save")
	}
	if res.Park.ID == "" {
		t.Error("saved park has no id")
	}
	if c.State() != StateDone {
		t.Errorf("State() = %v, want done", c.State())
	}

	calls := client.Calls("create")
	if len(calls) != 1 {
		t.Fatalf("create calls = %d, want 1", len(calls))
	}
	if calls[0].Input.Name != "Parque de la Salud" {
		t.Errorf("Name = %q, want trimmed", calls[0].Input.Name)
	}
	if calls[0].Input.Abbreviation != "PDS" {
		t.Errorf("Abbreviation = %q, want uppercased", calls[0].Input.Abbreviation)
	}
}

func TestCreate_InvalidCityNeverSubmits(t *testing.T) {
	client := parksapitest.New()
	c := NewCreate(client, online(), Options{})
	fillValid(t, c)
	c.Set(validation.FieldCity, "Bogotá")

	_, err := c.Prepare()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Prepare() error = %v, want *ValidationError", err)
	}
	if verr.Count() != 1 {
		t.Errorf("Count() = %d, want 1", verr.Count())
	}
	if _, ok := verr.Errors[validation.FieldCity]; !ok {
		t.Errorf("Errors = %v, want city", verr.Errors)
	}

	res := c.Execute(context.Background())
	if !errors.As(res.Err, &verr) {
		t.Errorf("Execute() error = %v, want *ValidationError", res.Err)
	}
	if n := len(client.Calls("")); n != 0 {
		t.Errorf("client calls = %d, want 0", n)
	}
}

func TestEdit_NoChanges(t *testing.T) {
	client := parksapitest.New(parksapitest.Sample("4"))
	c := NewEdit(client, online(), "4", Options{})

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.HasChanges() {
		t.Error("HasChanges() = true right after load")
	}

	if _, err := c.Prepare(); !errors.Is(err, ErrNoChanges) {
		t.Errorf("Prepare() error = %v, want ErrNoChanges", err)
	}
	if res := c.Execute(context.Background()); !errors.Is(res.Err, ErrNoChanges) {
		t.Errorf("Execute() error = %v, want ErrNoChanges", res.Err)
	}
	if n := len(client.Calls("update")); n != 0 {
		t.Errorf("update calls = %d, want 0", n)
	}

	// reverting an edit is not a change
	c.Set(validation.FieldName, "Parque Nuevo")
	c.Set(validation.FieldName, "Parque del Perro")
	if c.HasChanges() {
		t.Error("HasChanges() = true after reverting the edit")
	}
}

func TestEdit_Update(t *testing.T) {
	client := parksapitest.New(parksapitest.Sample("4"))
	c := NewEdit(client, online(), "4", Options{})
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	c.Set(validation.FieldName, "Parque del Gato")

	conf, err := c.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	want := []Change{{
		Field:  validation.FieldName,
		Label:  "Name",
		Before: "Parque del Perro",
		After:  "Parque del Gato",
	}}
	if diff := cmp.Diff(want, conf.Changes); diff != "" {
		t.Errorf("Changes mismatch (-want +got):\n%s", diff)
	}

	res := c.Execute(context.Background())
	if !res.OK() {
		t.Fatalf("Execute() error = %v", res.Err)
	}

	calls := client.Calls("update")
	if len(calls) != 1 || calls[0].ID != "4" {
		t.Fatalf("update calls = %+v, want one call for id 4", calls)
	}
	if res.Park.Name != "Parque del Gato" {
		t.Errorf("saved Name = %q", res.Park.Name)
	}
}

func TestEdit_LoadNotFound(t *testing.T) {
	client := parksapitest.New()
	c := NewEdit(client, online(), "99", Options{})

	err := c.Load(context.Background())
	if !parksapi.IsNotFound(err) {
		t.Fatalf("Load() error = %v, want NotFound", err)
	}
	if c.State() != StateLoading {
		t.Errorf("State() = %v, want loading", c.State())
	}
	if c.LoadErr() == nil || c.LoadErr().Kind != parksapi.KindNotFound {
		t.Errorf("LoadErr() = %v, want NotFound", c.LoadErr())
	}
	if _, err := c.Set(validation.FieldName, "x"); !errors.Is(err, ErrNotEditing) {
		t.Errorf("Set() before load error = %v, want ErrNotEditing", err)
	}
}

func TestEdit_LoadOffline(t *testing.T) {
	client := parksapitest.New(parksapitest.Sample("4"))
	c := NewEdit(client, &platform.Static{IsOnline: false}, "4", Options{})

	err := c.Load(context.Background())
	if parksapi.KindOf(err) != parksapi.KindOffline {
		t.Fatalf("Load() error = %v, want offline", err)
	}
	if n := len(client.Calls("")); n != 0 {
		t.Errorf("client calls = %d, want 0 while offline", n)
	}
}

func TestRetry_Bounded(t *testing.T) {
	client := parksapitest.New(parksapitest.Sample("4"))
	for i := 0; i < 5; i++ {
		client.FailNext("update", &parksapi.Error{Kind: parksapi.KindTimeout, Op: "update"})
	}

	c := NewEdit(client, online(), "4", Options{MaxAttempts: 3})
	c.Load(context.Background())
	c.Set(validation.FieldAddress, "Calle 5 con Carrera 39, San Fernando")

	ctx := context.Background()
	res := c.Execute(ctx)
	if res.OK() || !res.CanRetry || res.Attempt != 1 {
		t.Fatalf("Execute() = %+v, want retryable failure on attempt 1", res)
	}
	if res.Message() != (&parksapi.Error{Kind: parksapi.KindTimeout}).UserMessage() {
		t.Errorf("Message() = %q", res.Message())
	}

	res = c.Retry(ctx)
	if !res.CanRetry || res.Attempt != 2 {
		t.Fatalf("Retry() = %+v, want retryable failure on attempt 2", res)
	}

	res = c.Retry(ctx)
	if res.CanRetry || res.Attempt != 3 {
		t.Fatalf("Retry() = %+v, want final failure on attempt 3", res)
	}

	res = c.Retry(ctx)
	if !errors.Is(res.Err, ErrRetryExhausted) {
		t.Errorf("Retry() error = %v, want ErrRetryExhausted", res.Err)
	}

	if n := len(client.Calls("update")); n != 3 {
		t.Errorf("update calls = %d, want 3", n)
	}
	if c.State() != StateEditing {
		t.Errorf("State() = %v, want editing after failures", c.State())
	}
}

func TestRetry_SucceedsAfterFailure(t *testing.T) {
	client := parksapitest.New()
	client.FailNext("create", &parksapi.Error{Kind: parksapi.KindServerError, Op: "create", Status: 503})

	c := NewCreate(client, online(), Options{})
	fillValid(t, c)

	ctx := context.Background()
	if res := c.Execute(ctx); res.OK() {
		t.Fatal("Execute() should fail first")
	}
	res := c.Retry(ctx)
	if !res.OK() {
		t.Fatalf("Retry() error = %v", res.Err)
	}
	if res.Attempt != 2 {
		t.Errorf("Attempt = %d, want 2", res.Attempt)
	}
	if len(client.Parks()) != 1 {
		t.Errorf("server parks = %d, want 1", len(client.Parks()))
	}
}

func TestRetry_NotOfferedForUnauthorized(t *testing.T) {
	client := parksapitest.New()
	client.FailNext("create", &parksapi.Error{Kind: parksapi.KindUnauthorized, Op: "create", Status: 401})

	c := NewCreate(client, online(), Options{})
	fillValid(t, c)

	res := c.Execute(context.Background())
	if res.CanRetry {
		t.Error("CanRetry = true for unauthorized")
	}
	if res := c.Retry(context.Background()); !errors.Is(res.Err, ErrRetryExhausted) {
		t.Errorf("Retry() error = %v, want ErrRetryExhausted", res.Err)
	}
	if n := len(client.Calls("create")); n != 1 {
		t.Errorf("create calls = %d, want 1", n)
	}
}

func TestExecute_Offline(t *testing.T) {
	client := parksapitest.New()
	c := NewCreate(client, &platform.Static{IsOnline: false}, Options{})
	fillValid(t, c)

	res := c.Execute(context.Background())
	if parksapi.KindOf(res.Err) != parksapi.KindOffline {
		t.Fatalf("Execute() error = %v, want offline", res.Err)
	}
	if res.CanRetry {
		t.Error("CanRetry = true while offline")
	}
	if n := len(client.Calls("")); n != 0 {
		t.Errorf("client calls = %d, want 0", n)
	}
}

func TestExecute_ServerDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	base := "http://" + ln.Addr().String()
	ln.Close()

	client := parksapi.NewClient(parksapi.Options{BaseURL: base, Timeout: time.Second})
	c := NewCreate(client, platform.NewSystem(base), Options{})
	fillValid(t, c)

	res := c.Execute(context.Background())
	if kind := parksapi.KindOf(res.Err); kind != parksapi.KindUnknown {
		t.Fatalf("Execute() kind = %v, want unknown (err %v)", kind, res.Err)
	}
	if !res.CanRetry {
		t.Error("CanRetry = false for a refused connection")
	}
}

func TestCancel(t *testing.T) {
	client := parksapitest.New()
	client.FailNext("create", &parksapi.Error{Kind: parksapi.KindTimeout, Op: "create"})

	c := NewCreate(client, online(), Options{})
	fillValid(t, c)
	c.Execute(context.Background())

	c.Cancel()
	if c.LastErr() != nil || c.Attempts() != 0 {
		t.Errorf("after Cancel: LastErr = %v, Attempts = %d", c.LastErr(), c.Attempts())
	}
	if res := c.Retry(context.Background()); !errors.Is(res.Err, ErrNothingPending) {
		t.Errorf("Retry() after Cancel error = %v, want ErrNothingPending", res.Err)
	}
	if got := c.Value(validation.FieldAbbreviation); got != "pds" {
		t.Errorf("draft lost after Cancel: abbreviation = %q", got)
	}
}

type blockingClient struct {
	*parksapitest.Client
	started chan struct{}
	release chan struct{}
}

func (b *blockingClient) Create(ctx context.Context, in models.ParkInput) (*models.Park, error) {
	close(b.started)
	<-b.release
	return b.Client.Create(ctx, in)
}

func TestExecute_SingleFlight(t *testing.T) {
	client := &blockingClient{
		Client:  parksapitest.New(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := NewCreate(client, online(), Options{})
	fillValid(t, c)

	done := make(chan Result)
	go func() {
		done <- c.Execute(context.Background())
	}()
	<-client.started

	if c.State() != StateSubmitting {
		t.Errorf("State() = %v, want submitting", c.State())
	}
	if _, err := c.Prepare(); !errors.Is(err, ErrBusy) {
		t.Errorf("Prepare() during submit error = %v, want ErrBusy", err)
	}
	if res := c.Execute(context.Background()); !errors.Is(res.Err, ErrBusy) {
		t.Errorf("second Execute() error = %v, want ErrBusy", res.Err)
	}

	close(client.release)
	if res := <-done; !res.OK() {
		t.Fatalf("Execute() error = %v", res.Err)
	}
	if n := len(client.Calls("create")); n != 1 {
		t.Errorf("create calls = %d, want 1", n)
	}
}

func TestTransform(t *testing.T) {
	d := validation.Draft{
		validation.FieldName:         " Parque del Perro ",
		validation.FieldAbbreviation: " pdp",
		validation.FieldImageURL:     "https://images.example.com/parks/perro.jpg ",
		validation.FieldAddress:      "Calle 2 Oeste con Carrera 34",
		validation.FieldCity:         "Cali",
		validation.FieldState:        "",
		validation.FieldPostalCode:   "760045",
		validation.FieldLatitude:     " 3.4372",
		validation.FieldLongitude:    "-76.5436",
	}

	got, err := Transform(d)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	want := parksapitest.Sample("").Input()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Transform() mismatch (-want +got):\n%s", diff)
	}

	d[validation.FieldLatitude] = "north"
	if _, err := Transform(d); err == nil {
		t.Error("Transform() should fail on a non-numeric latitude")
	}
}
