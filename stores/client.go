package stores

import (
	"context"

	"gorm.io/gorm"

	"github.com/malwarebo/invoicer/models"
	"github.com/malwarebo/invoicer/utils"
)

type ClientStore struct {
	BaseStore
}

func CreateClientStore(db *gorm.DB) *ClientStore {
	return &ClientStore{BaseStore: BaseStore{db: db}}
}

func (s *ClientStore) Create(ctx context.Context, client *models.Client) error {
	return s.GetDB(ctx).Create(client).Error
}

func (s *ClientStore) Update(ctx context.Context, client *models.Client) error {
	return s.GetDB(ctx).Save(client).Error
}

func (s *ClientStore) GetByID(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	if err := s.GetDB(ctx).First(&client, "id = ?", id).Error; err != nil {
		return nil, notFound(err, utils.ErrClientNotFound)
	}
	return &client, nil
}

func (s *ClientStore) Delete(ctx context.Context, id string) error {
	result := s.GetDB(ctx).Delete(&models.Client{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrClientNotFound
	}
	return nil
}

func (s *ClientStore) List(ctx context.Context, limit, offset int) ([]*models.Client, int64, error) {
	var total int64
	if err := s.GetDB(ctx).Model(&models.Client{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var clients []*models.Client
	query := paginate(s.GetDB(ctx), limit, offset)
	if err := query.Order("name ASC").Order("created_at ASC").Find(&clients).Error; err != nil {
		return nil, 0, err
	}
	return clients, total, nil
}

func (s *ClientStore) CountInvoices(ctx context.Context, clientID string) (int64, error) {
	var count int64
	err := s.GetDB(ctx).Model(&models.Invoice{}).Where("client_id = ?", clientID).Count(&count).Error
	return count, err
}
