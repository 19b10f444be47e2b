package chat

type messageKey int

const (
	msgBlocked messageKey = iota
	msgQuota
	msgUnavailable
	msgFailure
	msgInvalid
	msgNoResults
	msgVisitorSaved
	msgViewingScheduled
	msgInquirySent
)

var localized = map[string]map[messageKey]string{
	"id": {
		msgBlocked:          "Maaf, saya tidak dapat memproses permintaan tersebut. Silakan tanyakan seputar properti yang Anda cari.",
		msgQuota:            "Maaf, layanan asisten sedang tidak tersedia untuk situs ini. Silakan hubungi agen secara langsung.",
		msgUnavailable:      "Maaf, asisten sedang sibuk. Silakan coba lagi dalam beberapa saat.",
		msgFailure:          "Maaf, terjadi kesalahan. Silakan coba lagi.",
		msgInvalid:          "Maaf, pesan Anda tidak dapat diproses. Silakan tulis ulang pertanyaan Anda.",
		msgNoResults:        "Maaf, saya belum menemukan properti yang sesuai. Apakah Anda ingin mengubah kriteria pencarian?",
		msgVisitorSaved:     "Terima kasih, data Anda sudah kami catat. Agen akan segera menghubungi Anda.",
		msgViewingScheduled: "Terima kasih, permintaan survei Anda sudah kami catat. Agen akan menghubungi Anda untuk konfirmasi.",
		msgInquirySent:      "Terima kasih, pertanyaan Anda sudah diteruskan ke agen.",
	},
	"en": {
		msgBlocked:          "Sorry, I can't help with that request. Feel free to ask about the properties you're looking for.",
		msgQuota:            "Sorry, the assistant is unavailable for this site right now. Please contact the agent directly.",
		msgUnavailable:      "Sorry, the assistant is busy right now. Please try again in a moment.",
		msgFailure:          "Sorry, something went wrong. Please try again.",
		msgInvalid:          "Sorry, I couldn't process your message. Please rephrase your question.",
		msgNoResults:        "Sorry, I couldn't find a matching property yet. Would you like to adjust your search?",
		msgVisitorSaved:     "Thank you, your details have been recorded. The agent will contact you shortly.",
		msgViewingScheduled: "Thank you, your viewing request has been recorded. The agent will contact you to confirm.",
		msgInquirySent:      "Thank you, your inquiry has been forwarded to the agent.",
	},
}

func localize(lang string, key messageKey) string {
	if m, ok := localized[lang]; ok {
		return m[key]
	}
	return localized["id"][key]
}
