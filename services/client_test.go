package services

import (
	"context"
	"errors"
	"testing"

	"github.com/malwarebo/invoicer/models"
	"github.com/malwarebo/invoicer/stores"
	"github.com/malwarebo/invoicer/testutil"
	"github.com/malwarebo/invoicer/utils"
)

func TestClientService_CreateUpdate(t *testing.T) {
	db := testutil.OpenDB(t)
	service := CreateClientService(stores.CreateClientStore(db))
	ctx := context.Background()

	client, err := service.Create(ctx, &models.ClientRequest{Name: "  Globex  ", Email: "ap@globex.test"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if client.Name != "Globex" {
		t.Errorf("Name = %q, want trimmed %q", client.Name, "Globex")
	}

	updated, err := service.Update(ctx, client.ID, &models.ClientRequest{Name: "Globex Corp", Email: "ap@globex.test", City: "Singapore"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "Globex Corp" || updated.City != "Singapore" {
		t.Errorf("Update() = %+v", updated)
	}

	list, err := service.List(ctx, 0, 0)
	if err != nil || list.Total != 1 {
		t.Errorf("List() total = %v, err = %v", list, err)
	}
}

func TestClientService_Validation(t *testing.T) {
	db := testutil.OpenDB(t)
	service := CreateClientService(stores.CreateClientStore(db))

	tests := []struct {
		name string
		req  models.ClientRequest
	}{
		{"missing name", models.ClientRequest{Email: "a@b.test"}},
		{"missing email", models.ClientRequest{Name: "A"}},
		{"bad email", models.ClientRequest{Name: "A", Email: "not-an-email"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Create(context.Background(), &tt.req)
			var verrs utils.ValidationErrors
			if !errors.As(err, &verrs) {
				t.Errorf("Create() error = %v, want ValidationErrors", err)
			}
		})
	}
}

func TestClientService_DeleteRestricted(t *testing.T) {
	f := newFixture(t)
	service := CreateClientService(f.clients)
	ctx := context.Background()

	f.seed(t, "INV-2026-0001", "tok-1", models.InvoiceStatusDraft, models.NewDate(2026, 4, 1))

	if err := service.Delete(ctx, f.client.ID); !errors.Is(err, utils.ErrClientHasInvoices) {
		t.Fatalf("Delete() error = %v, want %v", err, utils.ErrClientHasInvoices)
	}
	if _, err := service.Get(ctx, f.client.ID); err != nil {
		t.Errorf("client should still exist: %v", err)
	}

	other, _ := service.Create(ctx, &models.ClientRequest{Name: "Initech", Email: "ap@initech.test"})
	if err := service.Delete(ctx, other.ID); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if err := service.Delete(ctx, other.ID); !errors.Is(err, utils.ErrClientNotFound) {
		t.Errorf("Delete() twice error = %v, want %v", err, utils.ErrClientNotFound)
	}
}
