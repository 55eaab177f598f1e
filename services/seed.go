package services

import (
	"bankledger/database"
	"bankledger/models"
	"bankledger/utils"
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// SeedCustomers - клиенты, которые создаются при первом запуске
var SeedCustomers = []models.Customer{
	{Name: "Arisha Barron", Email: "arisha.barron@example.com"},
	{Name: "Branden Gibson", Email: "branden.gibson@example.com"},
	{Name: "Rhonda Church", Email: "rhonda.church@example.com"},
	{Name: "Georgina Hazel", Email: "georgina.hazel@example.com"},
}

// Seed заполняет пустую базу клиентами и создает администратора, если его нет.
// Клиенты и администратор проверяются независимо, поэтому неудачный запуск можно повторить.
func Seed(ctx context.Context, db *database.Database, employees *EmployeeService, adminUsername, adminPassword string) error {
	count, err := db.CountCustomers(ctx)
	if err != nil {
		return fmt.Errorf("ошибка подсчета клиентов: %w", err)
	}
	if count == 0 {
		err := db.Transaction(ctx, func(tx *gorm.DB) error {
			for _, c := range SeedCustomers {
				customer := c
				if err := tx.Create(&customer).Error; err != nil {
					return fmt.Errorf("ошибка создания клиента %s: %w", c.Name, err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		utils.LogInfo("Seeded %d customers", len(SeedCustomers))
	}

	if _, err := db.GetEmployeeByUsername(ctx, adminUsername); err == nil {
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("ошибка поиска администратора: %w", err)
	}

	if _, err := employees.CreateEmployee(ctx, CreateEmployeeRequest{
		Username: adminUsername,
		Name:     "Administrator",
		Password: adminPassword,
		Role:     models.RoleAdmin,
	}); err != nil {
		return fmt.Errorf("ошибка создания администратора: %w", err)
	}

	utils.LogInfo("Seeded employee %q", adminUsername)
	return nil
}
