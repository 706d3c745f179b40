package telemetry

import "fmt"

// Field describes how one telemetry value is identified, formatted
// and labelled for display. SourceKey is the key in the raw telemetry
// map, which may differ from ID when the recording side uses another
// name. Transform, when set, converts the raw numeric value before
// formatting (unit conversions).
type Field struct {
	ID        string                `json:"id"`
	Label     string                `json:"label"`
	Unit      string                `json:"unit"`
	Format    string                `json:"format"`
	SourceKey string                `json:"sourceKey"`
	Transform func(float64) float64 `json:"-"`
}

// Sensor identifies one physical payload sensor and its display label.
type Sensor struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Fields is the display metadata for every telemetry value the
// payload produces, in presentation order.
var Fields = []Field{
	{ID: "alt_bmp", Label: "Altitude (BMP280)", Unit: "m", Format: "%.1f", SourceKey: "alt_bmp"},
	{ID: "pressure_bmp", Label: "Pressure (BMP280)", Unit: "Pa", Format: "%.0f", SourceKey: "pressure_bmp"},
	{ID: "alt_gps", Label: "Altitude (GPS)", Unit: "m", Format: "%.1f", SourceKey: "alt_gps"},
	{ID: "alt_6m", Label: "Altitude (6-min Avg)", Unit: "m", Format: "%.1f", SourceKey: "alt_6m"},
	{ID: "temp_tc", Label: "Temp (MAX6675)", Unit: "°C", Format: "%.1f", SourceKey: "temp_tc"},
	{ID: "temp_bmp", Label: "Temp (BMP280)", Unit: "°C", Format: "%.2f", SourceKey: "temp_bmp"},
	{ID: "temp_dht", Label: "Temp (DHT22)", Unit: "°C", Format: "%.1f", SourceKey: "temp_dht"},
	{ID: "co", Label: "CO (MQ-7)", Unit: "ppm", Format: "%.3f", SourceKey: "co"},
	{ID: "o3", Label: "Ozone (MQ-131)", Unit: "ppm", Format: "%.4f", SourceKey: "o3"},
	{ID: "flammable", Label: "Flammable Gas (MQ-2)", Unit: "ppm", Format: "%.3f", SourceKey: "flammable"},
	{ID: "speed", Label: "Speed (MPU6050)", Unit: "m/s", Format: "%.2f", SourceKey: "speed"},
	{ID: "gps", Label: "GPS (lat, lon)", Unit: "", Format: "%s", SourceKey: "gps_latlon"},
	{ID: "rtc", Label: "RTC Time (DS1302)", Unit: "", Format: "%v", SourceKey: "rtc_time"},
	{ID: "batt_voltage", Label: "Battery Voltage (BMS)", Unit: "V", Format: "%.2f", SourceKey: "batt_voltage"},
	{ID: "batt_current", Label: "Battery Current (BMS)", Unit: "A", Format: "%.2f", SourceKey: "batt_current"},
	{ID: "batt_temp", Label: "Battery Temp (BMS)", Unit: "°C", Format: "%.1f", SourceKey: "batt_temp"},
	{ID: "lora_rssi", Label: "LoRa RSSI", Unit: "dBm", Format: "%.0f", SourceKey: "lora_rssi"},
	{ID: "lora_snr", Label: "LoRa SNR", Unit: "dB", Format: "%.1f", SourceKey: "lora_snr"},
	{ID: "lora_packets", Label: "LoRa Packet Count", Unit: "", Format: "%v", SourceKey: "lora_packets"},
	{ID: "cpu", Label: "CPU Load", Unit: "%", Format: "%.1f", SourceKey: "cpu"},
}

// Sensors lists the payload sensors with a status indicator on the
// ground station, in presentation order.
var Sensors = []Sensor{
	{ID: "bmp", Label: "BMP180"},
	{ID: "gps", Label: "GPS"},
	{ID: "esp32", Label: "ESP32"},
	{ID: "max6675", Label: "MAX6675"},
	{ID: "dht22", Label: "DHT22"},
	{ID: "mpu", Label: "MPU6050"},
	{ID: "mq131", Label: "MQ131"},
	{ID: "mq2", Label: "MQ2"},
	{ID: "mq7", Label: "MQ7"},
	{ID: "bms", Label: "Battery Management System"},
}

// FieldByID returns the field definition for the given id.
func FieldByID(id string) (Field, bool) {
	for _, f := range Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// FormatValue renders a raw telemetry value according to the field
// definition. Numeric formats applied to non-numeric values fall back
// to plain printing rather than erroring.
func (f Field) FormatValue(v any) string {
	if v == nil {
		return "—"
	}

	if f.Format == "%s" || f.Format == "%v" {
		return fmt.Sprintf(f.Format, v)
	}

	n, ok := Coerce(v)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	if f.Transform != nil {
		n = f.Transform(n)
	}
	return fmt.Sprintf(f.Format, n)
}
