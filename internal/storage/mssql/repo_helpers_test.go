package mssql

import (
	"errors"
	"fmt"
	"testing"

	mssql "github.com/microsoft/go-mssqldb"

	"fwingest/internal/storage"
)

func TestClassifyMissingTable(t *testing.T) {
	t.Parallel()

	missing := fmt.Errorf("query: %w", mssql.Error{Number: invalidObjectName, Message: "Invalid object name 'pnad_dict'."})
	if err := classify("pnad_dict", missing); !errors.Is(err, storage.ErrTableNotFound) {
		t.Fatalf("classify(208) = %v, want ErrTableNotFound", err)
	}

	other := mssql.Error{Number: 2714, Message: "There is already an object named 'x'."}
	if err := classify("x", other); errors.Is(err, storage.ErrTableNotFound) {
		t.Fatalf("classify(2714) = %v, must not be ErrTableNotFound", err)
	}

	if isMissingTable(errors.New("Invalid object name")) {
		t.Fatal("plain errors carry no server number")
	}
}
