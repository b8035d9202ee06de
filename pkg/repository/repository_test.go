package repository_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/repository"
)

func TestNewUnknownBackend(t *testing.T) {
	_, err := repository.New(context.Background(), &repository.Config{
		Backend: "cassandra",
	})
	gt.Error(t, err)
}
