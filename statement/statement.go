// Package statement формирует XML выписку по счету
package statement

import (
	"bankledger/services"
	"errors"
	"strconv"
	"time"

	"github.com/beevik/etree"
)

// Build строит выписку: владелец, текущий баланс и переводы в переданном порядке
func Build(account *services.AccountDTO, items []services.TransferHistoryItem, generatedAt time.Time) ([]byte, error) {
	if account == nil {
		return nil, errors.New("statement: account is required")
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("Statement")
	root.CreateAttr("accountId", formatID(account.ID))
	root.CreateAttr("generatedAt", generatedAt.UTC().Format(time.RFC3339))

	owner := root.CreateElement("Owner")
	owner.CreateAttr("customerId", formatID(account.CustomerID))
	owner.SetText(account.CustomerName)

	root.CreateElement("Balance").SetText(account.Balance.StringFixed(2))

	transfers := root.CreateElement("Transfers")
	transfers.CreateAttr("count", strconv.Itoa(len(items)))
	for _, item := range items {
		t := transfers.CreateElement("Transfer")
		t.CreateAttr("id", formatID(item.ID))
		t.CreateAttr("direction", item.Direction)

		from := t.CreateElement("From")
		from.CreateAttr("accountId", formatID(item.From.AccountID))
		from.SetText(item.From.CustomerName)

		to := t.CreateElement("To")
		to.CreateAttr("accountId", formatID(item.To.AccountID))
		to.SetText(item.To.CustomerName)

		t.CreateElement("Amount").SetText(item.Amount.StringFixed(2))
		t.CreateElement("CreatedAt").SetText(item.CreatedAt.UTC().Format(time.RFC3339))
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
