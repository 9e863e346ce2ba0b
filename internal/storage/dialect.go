package storage

import (
	"strings"

	"scdash/pkg/contracts/domain"
)

type sqlType int

const (
	typeText sqlType = iota
	typeReal
	typeInteger
)

// columnTypes is the schema of the supply_chain table. Input columns not
// listed here are stored as text.
var columnTypes = map[string]sqlType{
	domain.ColProductType:           typeText,
	domain.ColSKU:                   typeText,
	domain.ColPrice:                 typeReal,
	domain.ColAvailability:          typeInteger,
	domain.ColUnitsSold:             typeInteger,
	domain.ColRevenueGenerated:      typeReal,
	domain.ColCustomerDemographics:  typeText,
	domain.ColStockLevels:           typeInteger,
	domain.ColLeadTimes:             typeInteger,
	domain.ColOrderQuantities:       typeInteger,
	domain.ColShippingTimes:         typeInteger,
	domain.ColShippingCarriers:      typeText,
	domain.ColShippingCosts:         typeReal,
	domain.ColSupplierName:          typeText,
	domain.ColLocation:              typeText,
	domain.ColLeadTime:              typeInteger,
	domain.ColProductionVolumes:     typeInteger,
	domain.ColManufacturingLeadTime: typeInteger,
	domain.ColManufacturingCosts:    typeReal,
	domain.ColInspectionResults:     typeText,
	domain.ColDefectRates:           typeReal,
	domain.ColTransportationModes:   typeText,
	domain.ColRoutes:                typeText,
	domain.ColCosts:                 typeReal,
	domain.ColTotalRevenue:          typeReal,
	domain.ColDelayedShipment:       typeInteger,
	domain.ColDeliveryRatio:         typeReal,
	domain.ColInventoryTurnover:     typeReal,
	domain.ColAvgShippingCost:       typeReal,
}

func typeOf(col string) sqlType {
	if t, ok := columnTypes[col]; ok {
		return t
	}
	return typeText
}

// dialect hides the differences between the supported drivers.
type dialect struct {
	name  string
	quote byte
	types map[sqlType]string
	// keyType is used for the primary key column, which MySQL cannot
	// declare as TEXT.
	keyType string
}

var (
	sqliteDialect = dialect{
		name:    DriverSQLite,
		quote:   '"',
		types:   map[sqlType]string{typeText: "TEXT", typeReal: "REAL", typeInteger: "INTEGER"},
		keyType: "TEXT",
	}
	mysqlDialect = dialect{
		name:    DriverMySQL,
		quote:   '`',
		types:   map[sqlType]string{typeText: "TEXT", typeReal: "DOUBLE", typeInteger: "BIGINT"},
		keyType: "VARCHAR(255)",
	}
)

func (d dialect) ident(name string) string {
	q := string(d.quote)
	return q + strings.ReplaceAll(name, q, q+q) + q
}

func (d dialect) createTable(table string, columns []string) string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(d.ident(table))
	sb.WriteString(" (\n")
	for i, col := range columns {
		if i > 0 {
			sb.WriteString(",\n")
		}
		sb.WriteString("\t")
		sb.WriteString(d.ident(col))
		sb.WriteString(" ")
		if col == domain.ColSKU {
			sb.WriteString(d.keyType)
			sb.WriteString(" PRIMARY KEY")
		} else {
			sb.WriteString(d.types[typeOf(col)])
		}
	}
	sb.WriteString("\n)")
	return sb.String()
}

func (d dialect) dropTable(table string) string {
	return "DROP TABLE IF EXISTS " + d.ident(table)
}

func (d dialect) insert(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.ident(c)
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return "INSERT INTO " + d.ident(table) + " (" + strings.Join(quoted, ", ") + ") VALUES (" + marks + ")"
}
