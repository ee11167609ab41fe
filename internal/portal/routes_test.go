package portal

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/zulandar/bikereg/internal/registry"
)

func TestRegister_CreatesCustomer(t *testing.T) {
	router, reg, _ := newTestRouter(t, SessionOpts{})

	w := do(t, router, http.MethodPost, "/api/register-customers", validRegistration())
	expectStatus(t, w, http.StatusCreated)

	var body struct {
		Message  string `json:"message"`
		Customer struct {
			ID           uint   `json:"id"`
			EngineNumber string `json:"engineNumber"`
			RimType      string `json:"rimType"`
			StartType    string `json:"startType"`
		} `json:"customer"`
	}
	decode(t, w, &body)
	if body.Message != "Registration successful" {
		t.Errorf("message = %q", body.Message)
	}
	if body.Customer.EngineNumber != "JC85E-1234567" || body.Customer.ID == 0 {
		t.Errorf("customer = %+v", body.Customer)
	}
	if body.Customer.RimType != "Alloy" || body.Customer.StartType != "Self Start" {
		t.Errorf("variant split = %q / %q", body.Customer.RimType, body.Customer.StartType)
	}

	n, err := reg.UnreadCount(context.Background())
	if err != nil || n != 1 {
		t.Errorf("UnreadCount = %d, %v; want 1", n, err)
	}
}

func TestRegister_DuplicateEngine(t *testing.T) {
	router, _, _ := newTestRouter(t, SessionOpts{})
	expectStatus(t, do(t, router, http.MethodPost, "/api/register-customers", validRegistration()), http.StatusCreated)

	w := do(t, router, http.MethodPost, "/api/register-customers", validRegistration())
	expectStatus(t, w, http.StatusBadRequest)
	var body struct {
		Message string `json:"message"`
	}
	decode(t, w, &body)
	if body.Message != "Engine number already registered." {
		t.Errorf("message = %q", body.Message)
	}
}

func TestRegister_ValidationFields(t *testing.T) {
	router, _, _ := newTestRouter(t, SessionOpts{})
	in := validRegistration()
	in["phone"] = "123"
	delete(in, "buyerName")

	w := do(t, router, http.MethodPost, "/api/register-customers", in)
	expectStatus(t, w, http.StatusBadRequest)
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	decode(t, w, &body)
	for _, f := range []string{"phone", "buyerName"} {
		if body.Fields[f] == "" {
			t.Errorf("fields missing %q: %v", f, body.Fields)
		}
	}
}

func TestRegister_RequiresRegistrationPassword(t *testing.T) {
	router, reg, _ := newTestRouter(t, SessionOpts{})

	for _, pw := range []string{"wrong", ""} {
		in := validRegistration()
		in["registrationPassword"] = pw
		w := do(t, router, http.MethodPost, "/api/register-customers", in)
		expectStatus(t, w, http.StatusUnauthorized)
		var body struct {
			Message string `json:"message"`
		}
		decode(t, w, &body)
		if body.Message != "Incorrect password." {
			t.Errorf("message = %q", body.Message)
		}
	}

	customers, err := reg.ListCustomers(context.Background())
	if err != nil {
		t.Fatalf("ListCustomers: %v", err)
	}
	if len(customers) != 0 {
		t.Errorf("stored %d customers without the registration password", len(customers))
	}
}

func TestRegister_BadJSON(t *testing.T) {
	router, _, _ := newTestRouter(t, SessionOpts{})
	w := do(t, router, http.MethodPost, "/api/register-customers", "not an object")
	expectStatus(t, w, http.StatusBadRequest)
}

func TestCheckEngine(t *testing.T) {
	router, _, _ := newTestRouter(t, SessionOpts{})
	expectStatus(t, do(t, router, http.MethodGet, "/api/check-engine", nil), http.StatusBadRequest)

	check := func() bool {
		w := do(t, router, http.MethodGet, "/api/check-engine?engineNumber=JC85E-1234567", nil)
		expectStatus(t, w, http.StatusOK)
		var body struct {
			Exists bool `json:"exists"`
		}
		decode(t, w, &body)
		return body.Exists
	}
	if check() {
		t.Fatal("exists before registration")
	}
	do(t, router, http.MethodPost, "/api/register-customers", validRegistration())
	if !check() {
		t.Fatal("not found after registration")
	}
}

func TestRegistrations_UpdateAndDelete(t *testing.T) {
	router, _, _ := newTestRouter(t, SessionOpts{})
	w := do(t, router, http.MethodPost, "/api/register-customers", validRegistration())
	var created struct {
		Customer struct {
			ID uint `json:"id"`
		} `json:"customer"`
	}
	decode(t, w, &created)
	path := fmt.Sprintf("/api/registrations/%d", created.Customer.ID)

	in := validRegistration()
	in["buyerName"] = "Ngozi Okafor"
	w = do(t, router, http.MethodPut, path, in)
	expectStatus(t, w, http.StatusOK)

	w = do(t, router, http.MethodGet, "/api/registrations", nil)
	expectStatus(t, w, http.StatusOK)
	var list []struct {
		BuyerName string `json:"buyerName"`
	}
	decode(t, w, &list)
	if len(list) != 1 || list[0].BuyerName != "Ngozi Okafor" {
		t.Fatalf("registrations = %+v", list)
	}

	expectStatus(t, do(t, router, http.MethodDelete, path, nil), http.StatusOK)
	expectStatus(t, do(t, router, http.MethodDelete, path, nil), http.StatusNotFound)
	expectStatus(t, do(t, router, http.MethodPut, "/api/registrations/abc", in), http.StatusBadRequest)
}

func TestCatalog(t *testing.T) {
	router, _, _ := newTestRouter(t, SessionOpts{})
	w := do(t, router, http.MethodGet, "/api/catalog", nil)
	expectStatus(t, w, http.StatusOK)
	var cat registry.Catalog
	decode(t, w, &cat)
	if len(cat.States) != 37 || len(cat.Models) == 0 {
		t.Errorf("catalog = %d states, %d models", len(cat.States), len(cat.Models))
	}
}

func TestValidateRegistrationPassword(t *testing.T) {
	router, _, _ := newTestRouter(t, SessionOpts{})
	expectStatus(t, do(t, router, http.MethodPost, "/api/validate-registration-password",
		map[string]string{"password": "dealers-only"}), http.StatusOK)
	expectStatus(t, do(t, router, http.MethodPost, "/api/validate-registration-password",
		map[string]string{"password": "guess"}), http.StatusUnauthorized)
}

func TestLogin(t *testing.T) {
	router, _, _ := newTestRouter(t, SessionOpts{})

	w := do(t, router, http.MethodPost, "/api/admin/login",
		map[string]string{"email": "boss@example.com", "password": "topsecret"})
	expectStatus(t, w, http.StatusOK)
	var body struct {
		Success bool   `json:"success"`
		Role    string `json:"role"`
	}
	decode(t, w, &body)
	if !body.Success || body.Role != "superadmin" {
		t.Errorf("login = %+v", body)
	}

	expectStatus(t, do(t, router, http.MethodPost, "/api/admin/login",
		map[string]string{"email": "boss@example.com", "password": "nope"}), http.StatusUnauthorized)
	expectStatus(t, do(t, router, http.MethodPost, "/api/admin/login",
		map[string]string{"email": "boss@example.com"}), http.StatusBadRequest)
}

func TestAdmins_Lifecycle(t *testing.T) {
	router, _, _ := newTestRouter(t, SessionOpts{})

	w := do(t, router, http.MethodPost, "/api/admin/admins",
		map[string]string{"fullName": "Ada Eze", "email": "Ada@Example.com"})
	expectStatus(t, w, http.StatusCreated)
	var created struct {
		Admin struct {
			ID    uint   `json:"id"`
			Email string `json:"email"`
		} `json:"admin"`
		GeneratedPassword string `json:"generatedPassword"`
	}
	decode(t, w, &created)
	if created.Admin.Email != "ada@example.com" || len(created.GeneratedPassword) != 6 {
		t.Fatalf("created = %+v", created)
	}

	w = do(t, router, http.MethodPost, "/api/admin/admins",
		map[string]string{"fullName": "Ada Again", "email": "ada@example.com"})
	expectStatus(t, w, http.StatusConflict)

	w = do(t, router, http.MethodPost, "/api/admin/login",
		map[string]string{"email": "ada@example.com", "password": created.GeneratedPassword})
	expectStatus(t, w, http.StatusOK)

	w = do(t, router, http.MethodPost, fmt.Sprintf("/api/admin/admins/%d/regenerate-password", created.Admin.ID), nil)
	expectStatus(t, w, http.StatusOK)

	w = do(t, router, http.MethodGet, "/api/admin/admins", nil)
	expectStatus(t, w, http.StatusOK)
	var admins []map[string]any
	decode(t, w, &admins)
	if len(admins) != 1 {
		t.Fatalf("admins = %v", admins)
	}
	if _, leaked := admins[0]["password"]; leaked {
		t.Error("admin listing exposes password hash")
	}

	expectStatus(t, do(t, router, http.MethodDelete, fmt.Sprintf("/api/admin/admins/%d", created.Admin.ID), nil), http.StatusOK)
	expectStatus(t, do(t, router, http.MethodDelete, fmt.Sprintf("/api/admin/admins/%d", created.Admin.ID), nil), http.StatusNotFound)
}

func dealerBody(name string) map[string]string {
	return map[string]string{
		"status":               "Active",
		"exOrMulti":            "Exclusive",
		"hondaExclusiveOutlet": "Yes",
		"pic":                  "tunde",
		"dlrName":              name,
		"region":               "south west",
		"state":                "lagos",
		"town":                 "ikeja",
		"address":              "12 Allen Avenue",
		"phone1":               "08030000000",
		"ownerOrContactPerson": "mr bello",
	}
}

func TestDealers_CRUD(t *testing.T) {
	router, _, _ := newTestRouter(t, SessionOpts{})

	for i := 0; i < 3; i++ {
		w := do(t, router, http.MethodPost, "/api/admin/dealers", dealerBody(fmt.Sprintf("acme motors %d", i)))
		expectStatus(t, w, http.StatusCreated)
	}
	expectStatus(t, do(t, router, http.MethodPost, "/api/admin/dealers", dealerBody("acme motors 0")), http.StatusConflict)

	w := do(t, router, http.MethodGet, "/api/admin/dealers?page=1&limit=2&search=acme", nil)
	expectStatus(t, w, http.StatusOK)
	var page struct {
		Dealers []struct {
			ID      uint   `json:"id"`
			DlrName string `json:"dlrName"`
		} `json:"dealers"`
		Total int64 `json:"total"`
	}
	decode(t, w, &page)
	if page.Total != 3 || len(page.Dealers) != 2 {
		t.Fatalf("page = %+v", page)
	}

	w = do(t, router, http.MethodGet, "/api/dealers/names", nil)
	expectStatus(t, w, http.StatusOK)
	var names struct {
		Dealers []string `json:"dealers"`
	}
	decode(t, w, &names)
	if len(names.Dealers) != 3 {
		t.Errorf("names = %v", names.Dealers)
	}

	id := page.Dealers[0].ID
	upd := dealerBody("acme motors renamed")
	expectStatus(t, do(t, router, http.MethodPut, fmt.Sprintf("/api/admin/dealers/%d", id), upd), http.StatusOK)
	expectStatus(t, do(t, router, http.MethodDelete, fmt.Sprintf("/api/admin/dealers/%d", id), nil), http.StatusOK)

	w = do(t, router, http.MethodDelete, "/api/admin/dealers", nil)
	expectStatus(t, w, http.StatusOK)
	var del struct {
		Deleted int64 `json:"deleted"`
	}
	decode(t, w, &del)
	if del.Deleted != 2 {
		t.Errorf("deleted = %d, want 2", del.Deleted)
	}
}

func TestDeleteAllCustomers(t *testing.T) {
	router, _, _ := newTestRouter(t, SessionOpts{})
	do(t, router, http.MethodPost, "/api/register-customers", validRegistration())
	w := do(t, router, http.MethodDelete, "/api/admin/customers", nil)
	expectStatus(t, w, http.StatusOK)
	var del struct {
		Deleted int64 `json:"deleted"`
	}
	decode(t, w, &del)
	if del.Deleted != 1 {
		t.Errorf("deleted = %d, want 1", del.Deleted)
	}
}

func TestNotifications_Flow(t *testing.T) {
	router, _, _ := newTestRouter(t, SessionOpts{})
	do(t, router, http.MethodPost, "/api/register-customers", validRegistration())
	second := validRegistration()
	second["engineNumber"] = "JC85E-7654321"
	do(t, router, http.MethodPost, "/api/register-customers", second)

	unread := func() int64 {
		w := do(t, router, http.MethodGet, "/api/admin/notifications/unread-count", nil)
		expectStatus(t, w, http.StatusOK)
		var body struct {
			Count int64 `json:"count"`
		}
		decode(t, w, &body)
		return body.Count
	}
	if n := unread(); n != 2 {
		t.Fatalf("unread = %d, want 2", n)
	}

	w := do(t, router, http.MethodGet, "/api/admin/notifications?page=1&limit=1", nil)
	expectStatus(t, w, http.StatusOK)
	var list struct {
		Notifications []struct {
			ID      uint   `json:"id"`
			Message string `json:"message"`
			Age     string `json:"age"`
		} `json:"notifications"`
		Total int64 `json:"total"`
	}
	decode(t, w, &list)
	if list.Total != 2 || len(list.Notifications) != 1 {
		t.Fatalf("list = %+v", list)
	}
	if list.Notifications[0].Message != "New customer registered by ACME MOTORS" {
		t.Errorf("message = %q", list.Notifications[0].Message)
	}
	if list.Notifications[0].Age == "" {
		t.Error("age not rendered")
	}

	expectStatus(t, do(t, router, http.MethodPost, "/api/admin/notifications/mark-all-read", nil), http.StatusOK)
	if n := unread(); n != 0 {
		t.Errorf("unread after mark-all-read = %d", n)
	}

	path := fmt.Sprintf("/api/admin/notifications/%d", list.Notifications[0].ID)
	expectStatus(t, do(t, router, http.MethodDelete, path, nil), http.StatusOK)
	expectStatus(t, do(t, router, http.MethodDelete, path, nil), http.StatusNotFound)
	expectStatus(t, do(t, router, http.MethodDelete, "/api/admin/notifications", nil), http.StatusOK)
}

func TestRegister_ForwardsToNotifier(t *testing.T) {
	reg, mn := newTestRegistry(t)
	router, err := NewRouter(reg, NewSessionManager(SessionOpts{}))
	if err != nil {
		t.Fatal(err)
	}
	expectStatus(t, do(t, router, http.MethodPost, "/api/register-customers", validRegistration()), http.StatusCreated)
	waitFor(t, "notifier delivery", func() bool { return len(mn.Sent()) == 1 })
}
