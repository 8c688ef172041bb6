package core

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// hedgeConfigFields breaks the UnmarshalJSON/UnmarshalYAML recursion.
type hedgeConfigFields HedgeConfig

func defaultHedgeFields() hedgeConfigFields {
	return hedgeConfigFields{FundAllocationPercent: DefaultFundAllocationPercent}
}

// UnmarshalJSON fills FundAllocationPercent with its default when omitted.
func (h *HedgeConfig) UnmarshalJSON(data []byte) error {
	f := defaultHedgeFields()
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*h = HedgeConfig(f)
	return nil
}

// UnmarshalYAML fills FundAllocationPercent with its default when omitted.
func (h *HedgeConfig) UnmarshalYAML(value *yaml.Node) error {
	f := defaultHedgeFields()
	if err := value.Decode(&f); err != nil {
		return err
	}
	*h = HedgeConfig(f)
	return nil
}
