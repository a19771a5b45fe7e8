package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/contact"
	"github.com/trezcool/madrasa/core/message"
	"github.com/trezcool/madrasa/services/email"
	"github.com/trezcool/madrasa/storage/database/inmem"
	"github.com/trezcool/madrasa/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	server      *Server
	conf        *core.Config
	contactRepo contact.Repository
	messageRepo message.Repository
	mailSvc     *emailsvc.ConsoleServiceMock
	metrics     *Metrics
	logger      *errorLogger
}

type errorLogger struct {
	core.NopLogger
	errs []error
}

func (l *errorLogger) Error(_ string, args ...interface{}) {
	for _, arg := range args {
		if err, ok := arg.(error); ok {
			l.errs = append(l.errs, err)
		}
	}
}

func testConfig() *core.Config {
	return &core.Config{
		Env:              "TEST",
		TestMode:         true,
		AppName:          "Madrasa",
		SecretKey:        "test-secret",
		DefaultFromEmail: "Madrasa <noreply@madrasa.test>",
		FrontendBaseURL:  "http://madrasa.test",
		NotifyByEmail:    true,
		Server: core.ServerConfig{
			Address:            ":0",
			JWTExpirationDelta: time.Hour,
		},
	}
}

func setup(t *testing.T) *testApp {
	t.Helper()
	conf := testConfig()

	// set up DB & repos
	db := inmemdb.NewDB()
	app := &testApp{
		conf:        conf,
		contactRepo: inmemdb.NewContactRepository(db),
		messageRepo: inmemdb.NewMessageRepository(db),
		mailSvc:     emailsvc.NewConsoleServiceMock(conf),
		metrics:     NewMetrics(prometheus.NewRegistry()),
		logger:      new(errorLogger),
	}

	// set up services
	contactSvc := contact.NewService(app.contactRepo)
	messageSvc := message.NewService(app.messageRepo, contactSvc, app.mailSvc, conf, app.logger)

	// set up server
	app.server = NewServer(Options{
		Conf:           conf,
		Logger:         app.logger,
		ContactSvc:     contactSvc,
		MessageSvc:     messageSvc,
		Metrics:        app.metrics,
		DisableReqLogs: true,
	})
	t.Cleanup(func() { _ = app.server.Shutdown(context.Background()) })
	return app
}

func (app *testApp) do(req *http.Request, rec *httptest.ResponseRecorder) {
	app.server.ServeHTTP(rec, req)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, c contact.Contact) string {
	t.Helper()
	token, err := GenerateToken([]byte(conf.SecretKey), NewClaims(c, conf))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "code")
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// seed creates a teacher, a parent with an email address and a student.
func (app *testApp) seed(t *testing.T) (teacher, parent, student contact.Contact) {
	t.Helper()
	teacher = testutil.CreateContact(t, app.contactRepo, "t1", "Ustadh Idris", core.RoleTeacher)
	parent = testutil.CreateContact(t, app.contactRepo, "p1", "Fatima Ali", core.RoleParent, "fatima@madrasa.test")
	student = testutil.CreateContact(t, app.contactRepo, "s1", "Omar Ali", core.RoleStudent)
	return
}
