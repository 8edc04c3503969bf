package profile

import "serialpha/src/models"

// DefaultMinIntervalMs applies when a profile does not declare a minimum sampling interval.
const DefaultMinIntervalMs = 100

func serial8N1(baud int) models.MSerialSettings {
	return models.MSerialSettings{BaudRate: baud, DataBits: 8, StopBits: 1, Parity: "none"}
}

func indexMap(keys ...string) map[string]*int {
	m := make(map[string]*int, len(keys))
	for i, k := range keys {
		m[k] = models.Int(i)
	}
	return m
}

// -----------------------------------------------------------------------------

// Builtin returns the instrument profiles shipped with the application.
func Builtin() []models.MProfile {
	return []models.MProfile{
		{
			Name:   "LUCA210 – Escala pH",
			Serial: serial8N1(9600),
			Parser: models.MParserSettings{
				Delimiter:      ",",
				LineTerminator: "\r",
				Fields:         []string{"pH", "temperature"},
				Map:            indexMap("pH", "temperature"),
				Validation:     map[string]models.MRange{"pH": {Min: models.Float(0), Max: models.Float(14)}},
			},
			Units:  map[string]string{"pH": "", "temperature": "°C"},
			Timing: models.MTimingSettings{MinIntervalMs: 2000},
		},
		{
			Name:   "LUCA210 – Escala Diferença Potencial Elétrico",
			Serial: serial8N1(9600),
			Parser: models.MParserSettings{
				Delimiter:      ",",
				LineTerminator: "\r",
				Fields:         []string{"potencial", "temperature"},
				Map:            indexMap("potencial", "temperature"),
			},
			Units:  map[string]string{"potencial": "mV", "temperature": "°C"},
			Timing: models.MTimingSettings{MinIntervalMs: 2000},
		},
		{
			Name:   "pH Meter 2 (19200),8,1,none",
			Serial: serial8N1(19200),
			Parser: models.MParserSettings{
				Delimiter:      ",",
				LineTerminator: "\r\n",
				Fields:         []string{"pH", "temperature"},
				Map:            indexMap("pH", "temperature"),
			},
			Units:  map[string]string{"pH": "", "temperature": "°C"},
			Timing: models.MTimingSettings{MinIntervalMs: 500},
		},
		{
			Name:   "pH 450C",
			Serial: serial8N1(115200),
			Parser: models.MParserSettings{
				Delimiter:      ";",
				LineTerminator: "\r\n",
				Fields:         []string{"pH", "temperature"},
				Map:            indexMap("pH", "temperature"),
			},
			Units:  map[string]string{"pH": "", "temperature": "°C"},
			Timing: models.MTimingSettings{MinIntervalMs: 200},
		},
		{
			Name:   "ADS_continuous – Arduino",
			Serial: serial8N1(9600),
			Parser: models.MParserSettings{
				Delimiter:      ";",
				LineTerminator: "\n",
				Fields:         []string{"pH"},
				Map:            indexMap("pH"),
			},
			Units:  map[string]string{"pH": ""},
			Timing: models.MTimingSettings{MinIntervalMs: 100},
		},
		{
			Name:   "AS7341 – FIA",
			Serial: serial8N1(115200),
			Parser: models.MParserSettings{
				Delimiter:      ";",
				LineTerminator: "\n",
				Fields:         []string{"pH", "ch1", "ch2", "ch3", "ch4", "ch5", "ch6", "ch7", "clear", "nir"},
				Map:            indexMap("pH", "ch1", "ch2", "ch3", "ch4", "ch5", "ch6", "ch7", "clear", "nir"),
			},
			Units:  map[string]string{"pH": "a.u."},
			Timing: models.MTimingSettings{MinIntervalMs: 50},
		},
	}
}

// -----------------------------------------------------------------------------

// MinInterval returns the profile minimum sampling interval in milliseconds.
func MinInterval(p *models.MProfile) int {
	if p == nil || p.Timing.MinIntervalMs <= 0 {
		return DefaultMinIntervalMs
	}
	return p.Timing.MinIntervalMs
}
