package feed

import (
	"encoding/xml"
	"strings"
)

type realtyXML struct {
	ID             string   `xml:"id"`
	Title          string   `xml:"title"`
	Description    string   `xml:"description"`
	Cost           string   `xml:"cost"`
	Currency       string   `xml:"currency"`
	CostType       string   `xml:"costtype"`
	Property       string   `xml:"property"`
	TypeOfRealty   string   `xml:"typeofrealty"`
	Settle         string   `xml:"settle"`
	Region         string   `xml:"region"`
	Street         string   `xml:"street"`
	HouseNumber    string   `xml:"house_number"`
	CoordsLat      string   `xml:"coords_lat"`
	CoordsLng      string   `xml:"coords_lng"`
	Rooms          string   `xml:"rooms"`
	Floor          string   `xml:"floor"`
	NumberOfFloors string   `xml:"numberoffloors"`
	SquareLive     string   `xml:"squarelive"`
	SquareFull     string   `xml:"squarefull"`
	FixedPhone     string   `xml:"fixed_phone"`
	Phone1         string   `xml:"phone1"`
	Email          string   `xml:"email"`
	Name           string   `xml:"name"`
	TypeOfOffer    string   `xml:"typeofoffer"`
	Photos         []string `xml:"photos>photo"`
	HashImg        string   `xml:"hash_ads_img"`
	HashTxt        string   `xml:"hash_ads_txt"`
}

func (x realtyXML) record() Record {
	return Record{
		ExternalID:    trim(x.ID),
		Title:         trim(x.Title),
		Description:   x.Description,
		Price:         trim(x.Cost),
		Currency:      trim(x.Currency),
		CostType:      trim(x.CostType),
		OfferType:     trim(x.Property),
		PropertyType:  trim(x.TypeOfRealty),
		PropertyLabel: trim(x.TypeOfRealty),
		City:          trim(x.Settle),
		Region:        trim(x.Region),
		CityLabel:     trim(x.Settle),
		Street:        trim(x.Street),
		House:         trim(x.HouseNumber),
		Latitude:      trim(x.CoordsLat),
		Longitude:     trim(x.CoordsLng),
		Rooms:         trim(x.Rooms),
		Floor:         trim(x.Floor),
		Floors:        trim(x.NumberOfFloors),
		LivingArea:    trim(x.SquareLive),
		TotalArea:     trim(x.SquareFull),
		FixedPhone:    trim(x.FixedPhone),
		Phone:         trim(x.Phone1),
		Email:         trim(x.Email),
		OwnerName:     trim(x.Name),
		OwnerType:     strings.ToLower(trim(x.TypeOfOffer)),
		Photos:        cleanList(x.Photos),
		TextHash:      trim(x.HashTxt),
		ImageHash:     trim(x.HashImg),
	}
}

type offerXML struct {
	InternalID  string `xml:"internal-id,attr"`
	Type        string `xml:"type"`
	Category    string `xml:"category"`
	Description string `xml:"description"`
	Rooms       string `xml:"rooms"`
	Floor       string `xml:"floor"`
	FloorsTotal string `xml:"floors-total"`
	LivingSpace string `xml:"living-space>value"`
	Area        string `xml:"area>value"`
	CostType    string `xml:"costtype"`
	Price       struct {
		Value    string `xml:"value"`
		Currency string `xml:"currency"`
	} `xml:"price"`
	Location struct {
		LocalityName string `xml:"locality-name"`
		Region       string `xml:"region"`
		Address      string `xml:"address"`
		Latitude     string `xml:"latitude"`
		Longitude    string `xml:"longitude"`
	} `xml:"location"`
	SalesAgent struct {
		Phone    string `xml:"phone"`
		Email    string `xml:"email"`
		Name     string `xml:"name"`
		Category string `xml:"category"`
	} `xml:"sales-agent"`
	Images []string `xml:"image"`
}

func (x offerXML) record() Record {
	return Record{
		ExternalID:    trim(x.InternalID),
		Description:   x.Description,
		Price:         trim(x.Price.Value),
		Currency:      trim(x.Price.Currency),
		CostType:      trim(x.CostType),
		OfferType:     trim(x.Type),
		PropertyType:  trim(x.Category),
		PropertyLabel: trim(x.Category),
		City:          trim(x.Location.LocalityName),
		Region:        trim(x.Location.Region),
		CityLabel:     trim(x.Location.LocalityName),
		Street:        trim(x.Location.Address),
		Latitude:      trim(x.Location.Latitude),
		Longitude:     trim(x.Location.Longitude),
		Rooms:         trim(x.Rooms),
		Floor:         trim(x.Floor),
		Floors:        trim(x.FloorsTotal),
		LivingArea:    trim(x.LivingSpace),
		TotalArea:     trim(x.Area),
		Phone:         trim(x.SalesAgent.Phone),
		Email:         trim(x.SalesAgent.Email),
		OwnerName:     trim(x.SalesAgent.Name),
		OwnerType:     ownerTypeFromAgent(x.SalesAgent.Category),
		Photos:        cleanList(x.Images),
	}
}

// ownerTypeFromAgent maps the YRL sales-agent category onto owner types.
func ownerTypeFromAgent(category string) string {
	switch strings.ToLower(trim(category)) {
	case "owner", "владелец", "власник":
		return "owner"
	case "agency", "agent", "агентство":
		return "agent"
	}
	return ""
}

// decodeRecord decodes the element at start into a Record for schema.
func decodeRecord(d *xml.Decoder, start *xml.StartElement, schema Schema) (Record, error) {
	switch schema {
	case SchemaOffer:
		var x offerXML
		if err := d.DecodeElement(&x, start); err != nil {
			return Record{}, err
		}
		return x.record(), nil
	default:
		var x realtyXML
		if err := d.DecodeElement(&x, start); err != nil {
			return Record{}, err
		}
		return x.record(), nil
	}
}

// recordTag is the element name holding one record.
func (s Schema) recordTag() string {
	if s == SchemaOffer {
		return "offer"
	}
	return "realty"
}

func trim(s string) string {
	return strings.TrimSpace(s)
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = trim(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
