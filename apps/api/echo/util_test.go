package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/student"
	"github.com/trezcool/gradebook/storage/database/dummy"
	"github.com/trezcool/gradebook/tests"
)

type testEnv struct {
	app     Server
	db      *dummydb.DB
	repo    student.Repository
	tracker *student.Tracker
}

func setup(t *testing.T) testEnv {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	repo := dummydb.NewStudentRepository(db)
	logger := testutil.NopLogger{}

	tracker, err := student.NewTracker(context.Background(), repo, logger)
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	student.InitValidators(validate, translator)

	app := NewServer(ServerDeps{
		Conf:       testutil.NewConfig(t),
		Logger:     logger,
		Tracker:    tracker,
		Validate:   validate,
		Translator: translator,
	})
	return testEnv{app: app, db: db, repo: repo, tracker: tracker}
}

// createStudent goes through the tracker so that its mirror knows the student.
func (env testEnv) createStudent(t *testing.T, name, roll string, grades map[string]float64) student.Student {
	ctx := context.Background()
	if res := env.tracker.AddStudent(ctx, name, roll); !res.OK {
		t.Fatalf("createStudent() failed: %s", res.Message)
	}
	for subject, g := range grades {
		if res := env.tracker.AddGrade(ctx, roll, subject, g); !res.OK {
			t.Fatalf("createStudent() failed: %s", res.Message)
		}
	}
	std, ok := env.tracker.GetStudent(ctx, roll)
	if !ok {
		t.Fatalf("createStudent() failed: %s not found", roll)
	}
	return std
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	form     url.Values
	body     []byte // JSON; used when form is nil
	wantCode int
	wantData []byte // not checked when nil
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return req, rec
}

func newFormRequest(method, path string, form url.Values) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	return req, rec
}

func (tt httpTest) request() (*http.Request, *httptest.ResponseRecorder) {
	if tt.form != nil {
		return newFormRequest(tt.method, tt.path, tt.form)
	}
	if tt.body != nil {
		return newRequest(tt.method, tt.path, tt.body)
	}
	return newRequest(tt.method, tt.path)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
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
	assert.Equal(t, tt.wantCode, rec.Code, "code; body = %s", rec.Body.String())
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

func runHTTPTests(t *testing.T, app Server, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := tt.request()
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
