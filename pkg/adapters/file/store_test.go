package file_test

import (
	"testing"

	"github.com/caseflow-io/caseflow/pkg/adapters/file"
	"github.com/caseflow-io/caseflow/pkg/ports"
)

func TestFileStore_Contract(t *testing.T) {
	ports.RunStateStoreContract(t, file.New(t.TempDir()))
}
