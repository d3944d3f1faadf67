package service

// Scripted intake dialogue texts sent back over the requester channel.
const (
	msgGreeting = "Olá! Você está falando com o suporte. Para abrir um chamado, " +
		"informe o nome da sua empresa."

	msgInvalidCompany = "Não entendi. Informe o nome da empresa (mínimo 2 caracteres)."

	msgAskTaxID = "Agora informe o CNPJ da empresa (14 dígitos, somente números)."

	msgInvalidTaxID = "CNPJ inválido. Informe os 14 dígitos do CNPJ, somente números."

	msgAskContact = "Qual é o seu nome?"

	msgInvalidContact = "Não entendi. Informe o seu nome (mínimo 2 caracteres)."

	msgAskCategory = "Qual o motivo do contato? Responda com o número da opção:\n" +
		"1 - PDV fora do ar\n" +
		"2 - Promoção\n" +
		"3 - Estoque\n" +
		"4 - Nota fiscal\n" +
		"5 - Outros"

	msgInvalidCategory = "Opção inválida. Responda com um número de 1 a 5."

	msgAskDescription = "Descreva brevemente o problema."

	msgInvalidDescription = "Não entendi. Descreva o problema em uma mensagem."

	// Final confirmation; placeholders: ticket id, company, formatted tax id.
	msgTicketCreatedFmt = "Chamado %s aberto para %s (CNPJ %s). " +
		"Um operador entrará em contato em breve."

	msgAwaitingOperator = "Seu chamado já foi registrado. Aguarde, um operador " +
		"responderá em breve."
)
