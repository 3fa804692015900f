package validator

import (
	"errors"
	"testing"
)

type login struct {
	URL      string `validate:"required,url"`
	Username string `validate:"required"`
}

type sample struct {
	URI   string `validate:"required,url"`
	Delay int    `validate:"gt=0"`
	Login *login
}

func TestValidateStruct(t *testing.T) {
	ok := sample{URI: "http://localhost/x", Delay: 10}
	if err := ValidateStruct(ok); err != nil {
		t.Fatalf("expected valid struct, got %v", err)
	}

	bad := sample{URI: "not a url", Delay: 0, Login: &login{URL: "http://l"}}
	errs := TranslateError(ValidateStruct(bad))
	for _, key := range []string{"sample.URI", "sample.Delay", "sample.Login.Username"} {
		if _, ok := errs[key]; !ok {
			t.Errorf("expected error for %s, got %v", key, errs)
		}
	}
}

func TestTranslateErrorNonValidation(t *testing.T) {
	errs := TranslateError(errors.New("boom"))
	if errs["_"] != "boom" {
		t.Fatalf("unexpected map %v", errs)
	}
	if len(TranslateError(nil)) != 0 {
		t.Fatal("expected empty map for nil error")
	}
}
