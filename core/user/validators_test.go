package user

import (
	"sort"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/classmeasures/hub/core"
)

func newTestValidator() *validator.Validate {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func Test_validatePassword(t *testing.T) {
	validate := newTestValidator()

	commonPasswords = []string{"password1!", "qwerty"}
	sort.Strings(commonPasswords)
	defer func() { commonPasswords = nil }()

	newUser := func(pwd string) NewUser {
		return NewUser{
			Name:            "Jane Tutor",
			Username:        "janetutor",
			Email:           "jane@test.cm",
			Password:        pwd,
			PasswordConfirm: pwd,
		}
	}

	tests := []struct {
		name    string
		usr     NewUser
		wantTag string
	}{
		{name: "too short", usr: newUser("Sh0rt!"), wantTag: pwdMinLenTag},
		{name: "whitespace", usr: newUser("n0 Spaces!"), wantTag: pwdNoSpaceTag},
		{name: "all numeric", usr: newUser("1234567890"), wantTag: pwdNotAllNumTag},
		{name: "missing complexity", usr: newUser("weakpassword"), wantTag: pwdComplexityTag},
		{name: "similar to username", usr: newUser("J4netutor!"), wantTag: pwdAttrSimTag},
		{name: "common password", usr: newUser("Password1!"), wantTag: pwdNoCommonTag},
		{name: "valid", usr: newUser("V4l1d!pass")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.usr)
			if tt.wantTag == "" {
				if err != nil {
					t.Fatalf("Struct() error = %v, want nil", err)
				}
				return
			}
			vErrs, ok := err.(validator.ValidationErrors)
			if !ok || len(vErrs) == 0 {
				t.Fatalf("Struct() error = %v, want ValidationErrors", err)
			}
			if got := vErrs[0].Tag(); got != tt.wantTag {
				t.Errorf("tag = %v, want %v", got, tt.wantTag)
			}
		})
	}
}

func Test_validatePassword_skippedOnEmptyUpdate(t *testing.T) {
	validate := newTestValidator()

	if err := validate.Struct(UpdateUser{Name: "Jane"}); err != nil {
		t.Errorf("Struct() error = %v, want nil", err)
	}
}
