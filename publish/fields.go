package publish

import (
	"github.com/angas/awattar-go/hours"
	"github.com/angas/awattar-go/types"
)

const unitCentKWh = "Cent / KWh"

type field struct {
	key   string
	obj   types.StateObject
	value func(p types.NormalizedPrice) any
}

func readOnly(name, typ, unit, desc string) types.StateObject {
	return types.StateObject{
		Name:  name,
		Type:  typ,
		Role:  "value",
		Unit:  unit,
		Desc:  desc,
		Read:  true,
		Write: false,
	}
}

var rawdataObject = readOnly("Rawdata", types.StateTypeString, "", "Beinhaltet die Rohdaten des Abfrageergebnisses als JSON")

// Fields shared by both views, in write order.
var intervalFields = []field{
	{
		key: "start",
		obj: readOnly("Gultigkeitsbeginn (Uhrzeit)", types.StateTypeString, "", "Uhrzeit des Beginns der Gültigkeit des Preises"),
		value: func(p types.NormalizedPrice) any {
			return hours.FormatTime(hours.FromMillis(p.StartTimestamp))
		},
	},
	{
		key:   "startTimestamp",
		obj:   readOnly("startTimestamp", types.StateTypeNumber, "", "Timestamp des Beginns der Gültigkeit des Preises"),
		value: func(p types.NormalizedPrice) any { return p.StartTimestamp },
	},
	{
		key: "startDate",
		obj: readOnly("Gultigkeitsbeginn (Datum)", types.StateTypeString, "", "Datum des Beginns der Gültigkeit des Preises"),
		value: func(p types.NormalizedPrice) any {
			return hours.FormatDate(hours.FromMillis(p.StartTimestamp))
		},
	},
	{
		key: "end",
		obj: readOnly("Gultigkeitsende (Uhrzeit)", types.StateTypeString, "", ""),
		value: func(p types.NormalizedPrice) any {
			return hours.FormatTime(hours.FromMillis(p.EndTimestamp))
		},
	},
	{
		key:   "endTimestamp",
		obj:   readOnly("endTimestamp", types.StateTypeNumber, "", "Timestamp des Endes der Gültigkeit des Preises"),
		value: func(p types.NormalizedPrice) any { return p.EndTimestamp },
	},
	{
		key: "endDate",
		obj: readOnly("Gultigkeitsende (Datum)", types.StateTypeString, "", ""),
		value: func(p types.NormalizedPrice) any {
			return hours.FormatDate(hours.FromMillis(p.EndTimestamp))
		},
	},
}

var priceFields = append(intervalFields[:len(intervalFields):len(intervalFields)],
	field{
		key:   "nettoPriceKwh",
		obj:   readOnly("Preis pro KWh (excl. MwSt.)", types.StateTypeNumber, unitCentKWh, ""),
		value: func(p types.NormalizedPrice) any { return p.NetPriceKWh },
	},
	field{
		key:   "bruttoPriceKwh",
		obj:   readOnly("Preis pro KWh (incl. MwSt.)", types.StateTypeNumber, unitCentKWh, ""),
		value: func(p types.NormalizedPrice) any { return p.GrossPriceKWh },
	},
	field{
		key:   "totalPriceKwh",
		obj:   readOnly("Gesamtpreis pro KWh (incl. MwSt.)", types.StateTypeNumber, unitCentKWh, ""),
		value: func(p types.NormalizedPrice) any { return p.TotalPriceKWh },
	},
)

// The ranked view only carries the net price.
var orderedFields = append(intervalFields[:len(intervalFields):len(intervalFields)],
	field{
		key:   "priceKwh",
		obj:   readOnly("Preis pro KWh (excl. MwSt.)", types.StateTypeNumber, unitCentKWh, ""),
		value: func(p types.NormalizedPrice) any { return p.NetPriceKWh },
	},
)
