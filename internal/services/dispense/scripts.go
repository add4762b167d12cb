package dispense

// Spoken reminder scripts, selected by the configured call language. The
// English script repeats the line so a delayed pickup still hears it.
const (
	scriptEnglish = `<Response><Say>Medication time, please take your meds. Medication time, please take your meds.Medication time, please take your meds. Medication time, please take your meds.</Say></Response>`
	scriptChinese = `<Response><Say language="zh-CN">服药时间到了，请吃药.服药时间到了，请吃药.服药时间到了，请吃药.</Say></Response>`
	scriptDefault = `<Response><Say>Medication time, please take your meds.</Say></Response>`
)

func scriptForLanguage(lang string) string {
	switch lang {
	case "English":
		return scriptEnglish
	case "Chinese":
		return scriptChinese
	default:
		return scriptDefault
	}
}
