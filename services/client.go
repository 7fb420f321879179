package services

import (
	"context"
	"fmt"

	"github.com/malwarebo/invoicer/models"
	"github.com/malwarebo/invoicer/stores"
	"github.com/malwarebo/invoicer/utils"
)

type ClientService struct {
	clientStore *stores.ClientStore
	logger      *utils.Logger
}

func CreateClientService(clientStore *stores.ClientStore) *ClientService {
	return &ClientService{
		clientStore: clientStore,
		logger:      utils.NewLogger("clients"),
	}
}

func (s *ClientService) Create(ctx context.Context, req *models.ClientRequest) (*models.Client, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	client := &models.Client{}
	req.Apply(client)
	if err := s.clientStore.Create(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	s.logger.Info(ctx, "Client created", map[string]interface{}{"client_id": client.ID})
	return client, nil
}

func (s *ClientService) Get(ctx context.Context, id string) (*models.Client, error) {
	return s.clientStore.GetByID(ctx, id)
}

func (s *ClientService) List(ctx context.Context, limit, offset int) (*models.ClientListResponse, error) {
	clients, total, err := s.clientStore.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return &models.ClientListResponse{Clients: clients, Total: total}, nil
}

func (s *ClientService) Update(ctx context.Context, id string, req *models.ClientRequest) (*models.Client, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	client, err := s.clientStore.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	req.Apply(client)
	if err := s.clientStore.Update(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to update client: %w", err)
	}
	return client, nil
}

// Delete refuses while the client still has invoices.
func (s *ClientService) Delete(ctx context.Context, id string) error {
	return s.clientStore.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.clientStore.GetByID(txCtx, id); err != nil {
			return err
		}

		count, err := s.clientStore.CountInvoices(txCtx, id)
		if err != nil {
			return fmt.Errorf("failed to count invoices: %w", err)
		}
		if count > 0 {
			return utils.ErrClientHasInvoices
		}

		if err := s.clientStore.Delete(txCtx, id); err != nil {
			return err
		}

		s.logger.Info(txCtx, "Client deleted", map[string]interface{}{"client_id": id})
		return nil
	})
}
