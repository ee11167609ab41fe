package models

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertJSONName checks the json key a field serializes under.
func assertJSONName(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	name := strings.Split(f.Tag.Get("json"), ",")[0]
	if name != expected {
		t.Errorf("%s.%s json name = %q, want %q", typ.Name(), fieldName, name, expected)
	}
}

func TestCustomer_Fields(t *testing.T) {
	typ := reflect.TypeOf(Customer{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "EngineNumber", "uniqueIndex")
	assertGormTag(t, typ, "EngineNumber", "not null")
	assertGormTag(t, typ, "BuyerName", "not null")
	assertGormTag(t, typ, "Phone", "size:11")
	assertGormTag(t, typ, "CreatedAt", "index")

	assertJSONName(t, typ, "EngineNumber", "engineNumber")
	assertJSONName(t, typ, "BuyerName", "buyerName")
	assertJSONName(t, typ, "PurchaseDate", "purchaseDate")
	assertJSONName(t, typ, "EndUserPhone", "endUserPhone")
	assertJSONName(t, typ, "RimType", "rimType")
	assertJSONName(t, typ, "StartType", "startType")
}

func TestDealer_Fields(t *testing.T) {
	typ := reflect.TypeOf(Dealer{})

	assertGormTag(t, typ, "DlrName", "uniqueIndex:idx_dealer_location")
	assertGormTag(t, typ, "State", "uniqueIndex:idx_dealer_location")
	assertGormTag(t, typ, "Town", "uniqueIndex:idx_dealer_location")
	assertGormTag(t, typ, "PIC", "column:pic")
	assertGormTag(t, typ, "Address", "type:text")

	assertJSONName(t, typ, "ExOrMulti", "exOrMulti")
	assertJSONName(t, typ, "HondaExclusiveOutlet", "hondaExclusiveOutlet")
	assertJSONName(t, typ, "OwnerOrContactPerson", "ownerOrContactPerson")
	assertJSONName(t, typ, "PIC", "pic")
}

func TestAdmin_Fields(t *testing.T) {
	typ := reflect.TypeOf(Admin{})

	assertGormTag(t, typ, "Email", "uniqueIndex")
	assertGormTag(t, typ, "Role", "default:admin")
	assertJSONName(t, typ, "FullName", "fullName")
}

func TestAdmin_PasswordNeverSerialized(t *testing.T) {
	data, err := json.Marshal(Admin{Email: "a@example.com", Password: "$2a$10$hash"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(data), "hash") || strings.Contains(string(data), "password") {
		t.Errorf("Admin JSON leaks password: %s", data)
	}
}

func TestNotification_Fields(t *testing.T) {
	typ := reflect.TypeOf(Notification{})

	assertGormTag(t, typ, "Message", "not null")
	assertGormTag(t, typ, "Read", "default:false")
	assertGormTag(t, typ, "Read", "index")
	assertGormTag(t, typ, "Read", "column:is_read")
	assertJSONName(t, typ, "CreatedAt", "createdAt")
}
