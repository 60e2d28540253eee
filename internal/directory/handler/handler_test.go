package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spwotton/sms/internal/directory"
	contactStore "github.com/spwotton/sms/internal/directory/store/contact"
	"github.com/spwotton/sms/pkg/testutil"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()

	svc := directory.New(contactStore.NewInMemory())
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	h.Register(r)
	return r
}

func createContact(t *testing.T, router chi.Router, req ContactRequest) contactResponse {
	t.Helper()

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/contacts", req))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	return *testutil.UnmarshalResponse[contactResponse](t, rr)
}

func TestCreate(t *testing.T) {
	router := newTestRouter(t)

	created := createContact(t, router, ContactRequest{
		Name:         "Dana Reyes",
		Phone:        "+1 (555) 123-4567",
		Priority:     "high",
		Relationship: "friend",
	})

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Dana Reyes", created.Name)
	assert.Equal(t, "+15551234567", created.Phone)
	assert.Equal(t, "high", created.Priority)
	assert.Equal(t, "friend", created.Relationship)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestCreate_DefaultsApply(t *testing.T) {
	router := newTestRouter(t)

	created := createContact(t, router, ContactRequest{
		Name:  "Sam Ortiz",
		Phone: "+15551230001",
	})

	assert.Equal(t, "medium", created.Priority)
	assert.Equal(t, "other", created.Relationship)
}

func TestCreate_DuplicatePhone(t *testing.T) {
	router := newTestRouter(t)
	createContact(t, router, ContactRequest{Name: "First", Phone: "+15551230002"})

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/contacts", ContactRequest{
		Name:  "Second",
		Phone: "+15551230002",
	}))

	testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
}

func TestCreate_BadInputs(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name string
		req  ContactRequest
		code string
	}{
		{name: "missing name", req: ContactRequest{Phone: "+15551230003"}, code: "validation_error"},
		{name: "missing phone", req: ContactRequest{Name: "Pat"}, code: "validation_error"},
		{name: "malformed phone", req: ContactRequest{Name: "Pat", Phone: "555-0800"}, code: "validation_error"},
		{name: "unknown priority", req: ContactRequest{Name: "Pat", Phone: "+15551230004", Priority: "extreme"}, code: "invalid_input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/contacts", tt.req))
			testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, tt.code)
		})
	}
}

func TestGet(t *testing.T) {
	router := newTestRouter(t)
	created := createContact(t, router, ContactRequest{Name: "Dana Reyes", Phone: "+15551230005"})

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/contacts/"+created.ID))

	testutil.AssertStatus(t, rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[contactResponse](t, rr)
	assert.Equal(t, created.ID, resp.ID)
	assert.Equal(t, "Dana Reyes", resp.Name)
}

func TestGet_Unknown(t *testing.T) {
	router := newTestRouter(t)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/contacts/00000000-0000-0000-0000-000000000001"))

	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}

func TestList_PriorityOrderAndFilters(t *testing.T) {
	router := newTestRouter(t)
	createContact(t, router, ContactRequest{Name: "Low", Phone: "+15551230006", Priority: "low"})
	createContact(t, router, ContactRequest{Name: "Critical", Phone: "+15551230007", Priority: "critical", Relationship: "family"})
	createContact(t, router, ContactRequest{Name: "Medium", Phone: "+15551230008", Priority: "medium"})

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/contacts"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[contactListResponse](t, rr)
	require.Equal(t, 3, resp.Count)
	assert.Equal(t, "Critical", resp.Contacts[0].Name)
	assert.Equal(t, "Medium", resp.Contacts[1].Name)
	assert.Equal(t, "Low", resp.Contacts[2].Name)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/contacts?relationship=family"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	resp = testutil.UnmarshalResponse[contactListResponse](t, rr)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "Critical", resp.Contacts[0].Name)
}

func TestUpdate(t *testing.T) {
	router := newTestRouter(t)
	created := createContact(t, router, ContactRequest{Name: "Dana Reyes", Phone: "+15551230009"})

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPut, "/contacts/"+created.ID, ContactRequest{
		Name:     "Dana R.",
		Phone:    "+15551230010",
		Priority: "critical",
	}))

	testutil.AssertStatus(t, rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[contactResponse](t, rr)
	assert.Equal(t, created.ID, resp.ID)
	assert.Equal(t, "Dana R.", resp.Name)
	assert.Equal(t, "+15551230010", resp.Phone)
	assert.Equal(t, "critical", resp.Priority)
}

func TestUpdate_PhoneTakenByOther(t *testing.T) {
	router := newTestRouter(t)
	createContact(t, router, ContactRequest{Name: "Holder", Phone: "+15551230011"})
	victim := createContact(t, router, ContactRequest{Name: "Victim", Phone: "+15551230012"})

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPut, "/contacts/"+victim.ID, ContactRequest{
		Name:  "Victim",
		Phone: "+15551230011",
	}))

	testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
}

func TestDelete(t *testing.T) {
	router := newTestRouter(t)
	created := createContact(t, router, ContactRequest{Name: "Dana Reyes", Phone: "+15551230013"})

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodDelete, "/contacts/"+created.ID))
	testutil.AssertStatus(t, rr, http.StatusNoContent)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/contacts/"+created.ID))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}

func TestDelete_Unknown(t *testing.T) {
	router := newTestRouter(t)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodDelete, "/contacts/00000000-0000-0000-0000-000000000001"))

	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}
