package openfda

import "encoding/json"

// Placeholder values applied when an optional field is absent from an
// upstream record. These match the shapes shown in the public response
// examples.
const (
	unknownValue      = "Unknown"
	notAvailableValue = "Not available"
)

// ─── Raw upstream schema ────────────────────────────────────────────────────

// apiMeta is the meta block every openFDA response carries.
type apiMeta struct {
	Results struct {
		Skip  int `json:"skip"`
		Limit int `json:"limit"`
		Total int `json:"total"`
	} `json:"results"`
}

// apiError is the error block returned on non-2xx responses.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// envelope is the common top-level shape of an openFDA response. Results
// stays raw so each endpoint can decode its own record schema.
type envelope struct {
	Meta    apiMeta         `json:"meta"`
	Error   *apiError       `json:"error"`
	Results json.RawMessage `json:"results"`
}

// rawEvent mirrors the subset of a FAERS adverse event report we project.
type rawEvent struct {
	SafetyReportID string `json:"safetyreportid"`
	ReceiveDate    string `json:"receivedate"`
	Serious        string `json:"serious"`
	Patient        struct {
		PatientOnsetAge string `json:"patientonsetage"`
		PatientSex      string `json:"patientsex"`
		Reaction        []struct {
			ReactionMedDRAPT string `json:"reactionmeddrapt"`
		} `json:"reaction"`
		Drug []struct {
			MedicinalProduct string `json:"medicinalproduct"`
			DrugIndication   string `json:"drugindication"`
		} `json:"drug"`
	} `json:"patient"`
}

// rawLabel mirrors the subset of an SPL labeling record we project.
type rawLabel struct {
	OpenFDA struct {
		BrandName        []string `json:"brand_name"`
		GenericName      []string `json:"generic_name"`
		ManufacturerName []string `json:"manufacturer_name"`
		SubstanceName    []string `json:"substance_name"`
		ProductType      []string `json:"product_type"`
		Route            []string `json:"route"`
	} `json:"openfda"`
	IndicationsAndUsage     []string `json:"indications_and_usage"`
	Warnings                []string `json:"warnings"`
	AdverseReactions        []string `json:"adverse_reactions"`
	DosageAndAdministration []string `json:"dosage_and_administration"`
}

// rawRecall mirrors the subset of an enforcement report we project.
type rawRecall struct {
	RecallNumber         string `json:"recall_number"`
	ProductDescription   string `json:"product_description"`
	ReasonForRecall      string `json:"reason_for_recall"`
	Classification       string `json:"classification"`
	Status               string `json:"status"`
	RecallInitiationDate string `json:"recall_initiation_date"`
	RecallingFirm        string `json:"recalling_firm"`
	DistributionPattern  string `json:"distribution_pattern"`
}

// ─── Summary records ────────────────────────────────────────────────────────

// EventDrug is one suspect or concomitant drug inside an adverse event
// report.
type EventDrug struct {
	Name       string `json:"name"`
	Indication string `json:"indication"`
}

// EventSummary is the flattened projection of one adverse event report.
type EventSummary struct {
	ReportID    string      `json:"report_id"`
	ReceiveDate string      `json:"receive_date"`
	Serious     string      `json:"serious"`
	PatientAge  string      `json:"patient_age"`
	PatientSex  string      `json:"patient_sex"`
	Reactions   []string    `json:"reactions"`
	Drugs       []EventDrug `json:"drugs"`
}

// LabelSummary is the flattened projection of one labeling record.
type LabelSummary struct {
	BrandNames              []string `json:"brand_names"`
	GenericNames            []string `json:"generic_names"`
	Manufacturer            []string `json:"manufacturer"`
	SubstanceNames          []string `json:"substance_names"`
	ProductType             []string `json:"product_type"`
	Route                   []string `json:"route"`
	IndicationsAndUsage     []string `json:"indications_and_usage"`
	Warnings                []string `json:"warnings"`
	AdverseReactions        []string `json:"adverse_reactions"`
	DosageAndAdministration []string `json:"dosage_and_administration"`
}

// RecallSummary is the flattened projection of one enforcement report.
type RecallSummary struct {
	RecallNumber         string `json:"recall_number"`
	ProductDescription   string `json:"product_description"`
	ReasonForRecall      string `json:"reason_for_recall"`
	Classification       string `json:"classification"`
	Status               string `json:"status"`
	RecallInitiationDate string `json:"recall_initiation_date"`
	FirmName             string `json:"firm_name"`
	DistributionPattern  string `json:"distribution_pattern"`
}

// EventsResult is the response shape of the search_drug_events tool.
type EventsResult struct {
	TotalResults int            `json:"total_results"`
	Events       []EventSummary `json:"events"`
}

// LabelsResult is the response shape of the get_drug_label_info tool.
type LabelsResult struct {
	TotalResults int            `json:"total_results"`
	Labels       []LabelSummary `json:"labels"`
}

// RecallsResult is the response shape of the search_drug_recalls tool.
type RecallsResult struct {
	TotalResults int             `json:"total_results"`
	Recalls      []RecallSummary `json:"recalls"`
}

// ─── Normalizers ────────────────────────────────────────────────────────────

// decodeEnvelope parses body into the common envelope. A body that is not
// JSON, or that carries neither results nor an error block, is a
// KindMalformedResponse failure.
func decodeEnvelope(endpoint string, body []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, callErr(KindMalformedResponse, endpoint, "response body is not valid JSON", err)
	}
	if env.Results == nil && env.Error == nil {
		return nil, callErr(KindMalformedResponse, endpoint, `response is missing the top-level "results" key`, nil)
	}
	return &env, nil
}

// normalizeEvents projects raw FAERS records into summaries, truncated to
// limit. Upstream ordering is preserved.
func normalizeEvents(env *envelope, limit int) (*EventsResult, error) {
	var raw []rawEvent
	if err := json.Unmarshal(env.Results, &raw); err != nil {
		return nil, callErr(KindMalformedResponse, endpointEvents.name, `"results" is not an array of event reports`, err)
	}

	if len(raw) > limit {
		raw = raw[:limit]
	}
	events := make([]EventSummary, 0, len(raw))
	for _, ev := range raw {
		s := EventSummary{
			ReportID:    orUnknown(ev.SafetyReportID),
			ReceiveDate: orUnknown(ev.ReceiveDate),
			Serious:     orUnknown(ev.Serious),
			PatientAge:  orUnknown(ev.Patient.PatientOnsetAge),
			PatientSex:  orUnknown(ev.Patient.PatientSex),
			Reactions:   make([]string, 0, len(ev.Patient.Reaction)),
			Drugs:       make([]EventDrug, 0, len(ev.Patient.Drug)),
		}
		for _, r := range ev.Patient.Reaction {
			s.Reactions = append(s.Reactions, orUnknown(r.ReactionMedDRAPT))
		}
		for _, d := range ev.Patient.Drug {
			s.Drugs = append(s.Drugs, EventDrug{
				Name:       orUnknown(d.MedicinalProduct),
				Indication: orUnknown(d.DrugIndication),
			})
		}
		events = append(events, s)
	}

	return &EventsResult{
		TotalResults: env.Meta.Results.Total,
		Events:       events,
	}, nil
}

// normalizeLabels projects raw SPL records into summaries, truncated to
// limit.
func normalizeLabels(env *envelope, limit int) (*LabelsResult, error) {
	var raw []rawLabel
	if err := json.Unmarshal(env.Results, &raw); err != nil {
		return nil, callErr(KindMalformedResponse, endpointLabels.name, `"results" is not an array of labeling records`, err)
	}

	if len(raw) > limit {
		raw = raw[:limit]
	}
	labels := make([]LabelSummary, 0, len(raw))
	for _, l := range raw {
		labels = append(labels, LabelSummary{
			BrandNames:              orEmpty(l.OpenFDA.BrandName),
			GenericNames:            orEmpty(l.OpenFDA.GenericName),
			Manufacturer:            orEmpty(l.OpenFDA.ManufacturerName),
			SubstanceNames:          orEmpty(l.OpenFDA.SubstanceName),
			ProductType:             orEmpty(l.OpenFDA.ProductType),
			Route:                   orEmpty(l.OpenFDA.Route),
			IndicationsAndUsage:     orNotAvailable(l.IndicationsAndUsage),
			Warnings:                orNotAvailable(l.Warnings),
			AdverseReactions:        orNotAvailable(l.AdverseReactions),
			DosageAndAdministration: orNotAvailable(l.DosageAndAdministration),
		})
	}

	return &LabelsResult{
		TotalResults: env.Meta.Results.Total,
		Labels:       labels,
	}, nil
}

// normalizeRecalls projects raw enforcement records into summaries,
// truncated to limit.
func normalizeRecalls(env *envelope, limit int) (*RecallsResult, error) {
	var raw []rawRecall
	if err := json.Unmarshal(env.Results, &raw); err != nil {
		return nil, callErr(KindMalformedResponse, endpointRecalls.name, `"results" is not an array of enforcement reports`, err)
	}

	if len(raw) > limit {
		raw = raw[:limit]
	}
	recalls := make([]RecallSummary, 0, len(raw))
	for _, r := range raw {
		recalls = append(recalls, RecallSummary{
			RecallNumber:         orUnknown(r.RecallNumber),
			ProductDescription:   orUnknown(r.ProductDescription),
			ReasonForRecall:      orUnknown(r.ReasonForRecall),
			Classification:       orUnknown(r.Classification),
			Status:               orUnknown(r.Status),
			RecallInitiationDate: orUnknown(r.RecallInitiationDate),
			FirmName:             orUnknown(r.RecallingFirm),
			DistributionPattern:  orUnknown(r.DistributionPattern),
		})
	}

	return &RecallsResult{
		TotalResults: env.Meta.Results.Total,
		Recalls:      recalls,
	}, nil
}

func orUnknown(s string) string {
	if s == "" {
		return unknownValue
	}
	return s
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orNotAvailable(s []string) []string {
	if len(s) == 0 {
		return []string{notAvailableValue}
	}
	return s
}
