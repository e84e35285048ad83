package services

import (
	"slices"

	"github.com/lorrc/rx-dashboard-backend/internal/core/domain"
	"github.com/lorrc/rx-dashboard-backend/internal/core/pipeline"
	"github.com/lorrc/rx-dashboard-backend/internal/core/ports"
	"github.com/lorrc/rx-dashboard-backend/internal/core/presenter"
)

var chartCatalogue = []ports.ChartInfo{
	{
		Name:          presenter.ChartSpendVolumeMoM,
		Description:   "Period over period change in marketing spend and prescription volume",
		Source:        []domain.Dataset{domain.DatasetKPIs},
		Granularities: pipeline.Granularities,
		Default:       pipeline.Month,
	},
	{
		Name:          presenter.ChartCostPerRx,
		Description:   "Marketing spend per prescription",
		Source:        []domain.Dataset{domain.DatasetKPIs},
		Granularities: pipeline.Granularities,
		Default:       pipeline.Quarter,
	},
	{
		Name:          presenter.ChartSpendByPeriod,
		Description:   "Marketing spend summed per period",
		Source:        []domain.Dataset{domain.DatasetKPIs},
		Granularities: pipeline.Granularities,
		Default:       pipeline.Quarter,
	},
	{
		Name:        presenter.ChartTopDrivers,
		Description: "Segments with the highest relative contribution to growth",
		Source:      []domain.Dataset{domain.DatasetDrivers},
		Ranked:      true,
	},
	{
		Name:        presenter.ChartAnomalies,
		Description: "Recent prescription volume against the forecast band, anomalies flagged",
		Source:      []domain.Dataset{domain.DatasetAnomalies},
	},
	{
		Name:        presenter.ChartVolumeForecast,
		Description: "Daily prescription volume followed by the 30 day forecast",
		Source:      []domain.Dataset{domain.DatasetKPIs, domain.DatasetForecast},
	},
	{
		Name:        presenter.ChartForecast,
		Description: "30 day prescription forecast with bounds",
		Source:      []domain.Dataset{domain.DatasetForecast},
	},
	{
		Name:        presenter.ChartSpendVsVolume,
		Description: "Daily marketing spend against prescription volume",
		Source:      []domain.Dataset{domain.DatasetKPIs},
	},
	{
		Name:        presenter.ChartRepVisitsVsVolume,
		Description: "Daily rep visits against prescription volume",
		Source:      []domain.Dataset{domain.DatasetKPIs},
	},
	{
		Name:        presenter.ChartSatisfaction,
		Description: "Daily patient satisfaction score",
		Source:      []domain.Dataset{domain.DatasetKPIs},
	},
}

func (s *DashboardService) Charts() []ports.ChartInfo {
	return Catalogue()
}

// Catalogue lists every chart without touching the warehouse.
func Catalogue() []ports.ChartInfo {
	out := slices.Clone(chartCatalogue)
	for i := range out {
		out[i].Granularities = slices.Clone(out[i].Granularities)
	}
	return out
}

func lookupChart(name presenter.Name) (ports.ChartInfo, bool) {
	for _, info := range chartCatalogue {
		if info.Name == name {
			return info, true
		}
	}
	return ports.ChartInfo{}, false
}
